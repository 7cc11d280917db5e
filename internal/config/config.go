package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete agentops configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Events    EventsConfig    `mapstructure:"events"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// CORSOrigins lists allowed browser origins. Empty allows all origins.
	CORSOrigins []string `mapstructure:"cors_origins"`
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// Backends an agent task can run on
const (
	BackendClaudeCLI    = "claude-cli"
	BackendAnthropicAPI = "anthropic-api"
)

// AgentConfig controls how agent tasks are executed
type AgentConfig struct {
	// Backend selects the runner: "claude-cli" or "anthropic-api"
	Backend  string `mapstructure:"backend"`
	Model    string `mapstructure:"model"`
	MaxTurns int    `mapstructure:"max_turns"`
	// DefaultCwd is used when a task does not name a working directory
	DefaultCwd string `mapstructure:"default_cwd"`

	Claude    ClaudeCLIConfig    `mapstructure:"claude"`
	Anthropic AnthropicAPIConfig `mapstructure:"anthropic"`
}

// ClaudeCLIConfig configures the claude-cli backend
type ClaudeCLIConfig struct {
	Command string `mapstructure:"command"`
	// SkipPermissions disables permission prompts, and with them interactive
	// questions
	SkipPermissions bool `mapstructure:"skip_permissions"`
	// RelayURL is the permission relay URL the CLI connects to. Empty means
	// the relay mounted on this server.
	RelayURL string `mapstructure:"relay_url"`
}

// AnthropicAPIConfig configures the anthropic-api backend
type AnthropicAPIConfig struct {
	// APIKey falls back to the ANTHROPIC_API_KEY environment variable
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// PipelineConfig controls phase execution
type PipelineConfig struct {
	// MaxParallel bounds concurrent tasks within one group (0 = unbounded)
	MaxParallel int `mapstructure:"max_parallel"`
}

// EventsConfig controls per-operation event buffers
type EventsConfig struct {
	// MaxBuffered is the buffer size that triggers trimming (0 = never trim)
	MaxBuffered int `mapstructure:"max_buffered"`
	// TrimTo is the number of newest events kept after trimming
	TrimTo int `mapstructure:"trim_to"`
}

// WorkspaceConfig locates workspaces for built-in workflows
type WorkspaceConfig struct {
	// Root is the directory holding workspaces. Supports ~ expansion.
	Root string `mapstructure:"root"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Dir is where agentops.log is written. Empty logs to stderr.
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	// OTLPEndpoint enables tracing when set (host:port)
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "127.0.0.1",
			Port:                   3100,
			CORSOrigins:            []string{},
			ShutdownTimeoutSeconds: 30,
		},
		Agent: AgentConfig{
			Backend:  BackendClaudeCLI,
			Model:    "",
			MaxTurns: 0, // CLI default
			Claude: ClaudeCLIConfig{
				Command: "claude",
			},
			Anthropic: AnthropicAPIConfig{
				MaxTokens: 4096,
			},
		},
		Pipeline: PipelineConfig{
			MaxParallel: 0,
		},
		Events: EventsConfig{
			MaxBuffered: 5000,
			TrimTo:      3000,
		},
		Workspace: WorkspaceConfig{
			Root: "~/workspaces",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "agentops",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "agentops",
		},
	}
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ShutdownTimeout returns the graceful shutdown budget as a time.Duration
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ResolvedAPIKey returns the configured key or ANTHROPIC_API_KEY
func (c *AnthropicAPIConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// ResolveRoot returns the workspace root with ~ expanded.
func (w *WorkspaceConfig) ResolveRoot() string {
	return expandHome(w.Root)
}

// ResolveDir returns the log directory with ~ expanded.
func (l *LoggingConfig) ResolveDir() string {
	return expandHome(l.Dir)
}

func expandHome(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.cors_origins", defaults.Server.CORSOrigins)
	viper.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	// Agent defaults
	viper.SetDefault("agent.backend", defaults.Agent.Backend)
	viper.SetDefault("agent.model", defaults.Agent.Model)
	viper.SetDefault("agent.max_turns", defaults.Agent.MaxTurns)
	viper.SetDefault("agent.default_cwd", defaults.Agent.DefaultCwd)
	viper.SetDefault("agent.claude.command", defaults.Agent.Claude.Command)
	viper.SetDefault("agent.claude.skip_permissions", defaults.Agent.Claude.SkipPermissions)
	viper.SetDefault("agent.claude.relay_url", defaults.Agent.Claude.RelayURL)
	viper.SetDefault("agent.anthropic.api_key", defaults.Agent.Anthropic.APIKey)
	viper.SetDefault("agent.anthropic.base_url", defaults.Agent.Anthropic.BaseURL)
	viper.SetDefault("agent.anthropic.max_tokens", defaults.Agent.Anthropic.MaxTokens)

	// Pipeline defaults
	viper.SetDefault("pipeline.max_parallel", defaults.Pipeline.MaxParallel)

	// Event buffer defaults
	viper.SetDefault("events.max_buffered", defaults.Events.MaxBuffered)
	viper.SetDefault("events.trim_to", defaults.Events.TrimTo)

	// Workspace defaults
	viper.SetDefault("workspace.root", defaults.Workspace.Root)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	// Telemetry defaults
	viper.SetDefault("telemetry.otlp_endpoint", defaults.Telemetry.OTLPEndpoint)
	viper.SetDefault("telemetry.insecure", defaults.Telemetry.Insecure)
	viper.SetDefault("telemetry.service_name", defaults.Telemetry.ServiceName)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentops")
	}
	// Fall back to ~/.config/agentops
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentops"
	}
	return filepath.Join(home, ".config", "agentops")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBackends returns the list of valid agent backends
func ValidBackends() []string {
	return []string{BackendClaudeCLI, BackendAnthropicAPI}
}
