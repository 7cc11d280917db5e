// Package config provides CLI commands for managing agentops configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/agentops/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify agentops configuration",
	Long: `View or modify agentops configuration.

Use 'config show' to display the effective configuration.
Use subcommands to modify settings or create a config file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  agentops config set server.port 3200
  agentops config set agent.backend anthropic-api
  agentops config set logging.level debug

Valid keys:
  server.host                 - Listen host
  server.port                 - Listen port
  agent.backend               - Agent backend: claude-cli, anthropic-api
  agent.model                 - Model override for every task
  agent.max_turns             - Turn limit per task (0 = backend default)
  agent.default_cwd           - Working directory when a task names none
  agent.claude.command        - Claude CLI command name/path
  agent.claude.skip_permissions - Run without permission prompts (true/false)
  agent.claude.relay_url      - Permission relay URL reachable by the CLI
  agent.anthropic.base_url    - Anthropic API base URL
  agent.anthropic.max_tokens  - Max tokens per API response
  pipeline.max_parallel       - Concurrent tasks per group (0 = unbounded)
  events.max_buffered         - Event buffer size that triggers trimming
  events.trim_to              - Events kept after trimming
  workspace.root              - Directory holding workspaces
  logging.level               - debug, info, warn, error
  logging.dir                 - Log directory (empty = stderr)
  metrics.enabled             - Serve /metrics (true/false)
  telemetry.otlp_endpoint     - OTLP/HTTP collector host:port`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/agentops/config.yaml with all available options.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for invalid values",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configValidateCmd)
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// settableKeys maps each key accepted by 'config set' to its value kind.
var settableKeys = map[string]string{
	"server.host":                   "string",
	"server.port":                   "int",
	"agent.backend":                 "backend",
	"agent.model":                   "string",
	"agent.max_turns":               "int",
	"agent.default_cwd":             "string",
	"agent.claude.command":          "string",
	"agent.claude.skip_permissions": "bool",
	"agent.claude.relay_url":        "string",
	"agent.anthropic.base_url":      "string",
	"agent.anthropic.max_tokens":    "int",
	"pipeline.max_parallel":         "int",
	"events.max_buffered":           "int",
	"events.trim_to":                "int",
	"workspace.root":                "string",
	"logging.level":                 "level",
	"logging.dir":                   "string",
	"metrics.enabled":               "bool",
	"telemetry.otlp_endpoint":       "string",
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	settings := viper.AllSettings()
	// Never print secrets
	if agent, ok := settings["agent"].(map[string]any); ok {
		if api, ok := agent["anthropic"].(map[string]any); ok {
			if key, _ := api["api_key"].(string); key != "" {
				api["api_key"] = "<redacted>"
			}
		}
	}
	delete(settings, "config")

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseValue converts value to the kind registered for key.
func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'agentops config set --help' to see valid keys", key)
	}

	switch kind {
	case "backend":
		if !slices.Contains(appconfig.ValidBackends(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidBackends(), ", "))
		}
		return value, nil
	case "level":
		level := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), level) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return level, nil
	case "bool":
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	}
	return value, nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = appconfig.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set(key, typed)
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typed)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

const defaultConfigFile = `# agentops configuration

server:
  host: 127.0.0.1
  port: 3100
  # Browser origins allowed by CORS; empty allows all
  cors_origins: []
  shutdown_timeout_seconds: 30

agent:
  # Backend: claude-cli or anthropic-api
  backend: claude-cli
  # Model override for every task (empty = backend default)
  model: ""
  # Turn limit per task (0 = backend default)
  max_turns: 0
  claude:
    command: claude
    # Without permission prompts agents cannot ask questions
    skip_permissions: false
    # Where the CLI reaches the permission relay (empty = this server's /mcp)
    relay_url: ""
  anthropic:
    # Falls back to ANTHROPIC_API_KEY
    api_key: ""
    max_tokens: 4096

pipeline:
  # Concurrent tasks per group (0 = unbounded)
  max_parallel: 0

events:
  # Buffered events per operation before the oldest are dropped
  max_buffered: 5000
  trim_to: 3000

workspace:
  root: ~/workspaces

logging:
  # debug, info, warn, error
  level: info
  # Directory for agentops.log (empty = stderr)
  dir: ""

metrics:
  enabled: true
  namespace: agentops

telemetry:
  # OTLP/HTTP collector host:port; tracing is off when empty
  otlp_endpoint: ""
  insecure: false
  service_name: agentops
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'agentops config set' to modify values", configFile)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: AGENTOPS_* (e.g., AGENTOPS_SERVER_PORT)")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := appconfig.Load(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
	return nil
}
