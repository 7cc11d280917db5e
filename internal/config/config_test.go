package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 3100 {
		t.Errorf("Server.Port = %d, want 3100", cfg.Server.Port)
	}
	if cfg.Agent.Backend != BackendClaudeCLI {
		t.Errorf("Agent.Backend = %q, want %q", cfg.Agent.Backend, BackendClaudeCLI)
	}
	if cfg.Agent.Claude.Command != "claude" {
		t.Errorf("Agent.Claude.Command = %q, want claude", cfg.Agent.Claude.Command)
	}
	if cfg.Events.MaxBuffered != 5000 || cfg.Events.TrimTo != 3000 {
		t.Errorf("Events = %+v, want 5000/3000", cfg.Events)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "agentops" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		t.Error("tracing should be disabled by default")
	}
}

func TestServerConfig(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8080, ShutdownTimeoutSeconds: 7}
	if got := s.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", got)
	}
	if got := s.ShutdownTimeout(); got != 7*time.Second {
		t.Errorf("ShutdownTimeout() = %v", got)
	}
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	c := AnthropicAPIConfig{}
	if got := c.ResolvedAPIKey(); got != "from-env" {
		t.Errorf("ResolvedAPIKey() = %q, want from-env", got)
	}
	c.APIKey = "from-config"
	if got := c.ResolvedAPIKey(); got != "from-config" {
		t.Errorf("ResolvedAPIKey() = %q, want from-config", got)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/workspaces", filepath.Join(home, "workspaces")},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"", ""},
	}
	for _, tt := range tests {
		w := WorkspaceConfig{Root: tt.in}
		if got := w.ResolveRoot(); got != tt.want {
			t.Errorf("ResolveRoot(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/agentops" {
			t.Errorf("ConfigDir() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		if got := ConfigDir(); got != filepath.Join(home, ".config", "agentops") {
			t.Errorf("ConfigDir() = %q", got)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/agentops/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
}

func TestGet(t *testing.T) {
	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Events.TrimTo != 3000 {
		t.Errorf("Get().Events.TrimTo = %d, want 3000", cfg.Events.TrimTo)
	}
	if cfg.Agent.Anthropic.MaxTokens != 4096 {
		t.Errorf("Get().Agent.Anthropic.MaxTokens = %d, want 4096", cfg.Agent.Anthropic.MaxTokens)
	}
}
