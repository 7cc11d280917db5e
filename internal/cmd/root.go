package cmd

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/agentops/internal/cmd/config"
	appconfig "github.com/Iron-Ham/agentops/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "agentops",
	Short: "Orchestrate multi-phase autonomous agent operations",
	Long: `agentops runs pipelines of autonomous coding agent tasks. Each pipeline is a
sequence of phases: a single task, a group of parallel tasks, or a built-in
step. Progress streams as events over HTTP (SSE or WebSocket) or straight to
the terminal, and agents can ask questions that are answered while they run.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/agentops/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	config.Register(rootCmd)
}

func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("AGENTOPS")
	// e.g., AGENTOPS_SERVER_PORT for server.port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
