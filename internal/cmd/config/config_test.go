package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/Iron-Ham/agentops/internal/config"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	appconfig.SetDefaults()
	t.Cleanup(viper.Reset)
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    any
		wantErr bool
	}{
		{key: "server.port", value: "3200", want: 3200},
		{key: "server.port", value: "-1", wantErr: true},
		{key: "server.port", value: "abc", wantErr: true},
		{key: "agent.backend", value: "anthropic-api", want: "anthropic-api"},
		{key: "agent.backend", value: "codex", wantErr: true},
		{key: "agent.claude.skip_permissions", value: "true", want: true},
		{key: "agent.claude.skip_permissions", value: "yes", wantErr: true},
		{key: "logging.level", value: "DEBUG", want: "debug"},
		{key: "logging.level", value: "trace", wantErr: true},
		{key: "workspace.root", value: "/srv/ws", want: "/srv/ws"},
		{key: "agent.anthropic.api_key", value: "sk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseValue(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("parseValue() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestConfigShow_RedactsAPIKey(t *testing.T) {
	resetViper(t)
	viper.Set("agent.anthropic.api_key", "sk-secret")

	cmd, buf := newTestCmd()
	if err := runConfigShow(cmd, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "sk-secret") {
		t.Errorf("api key leaked:\n%s", out)
	}
	if !strings.Contains(out, "<redacted>") || !strings.Contains(out, "port: 3100") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigSet(t *testing.T) {
	resetViper(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	viper.SetConfigFile(file)

	cmd, buf := newTestCmd()
	if err := runConfigSet(cmd, []string{"server.port", "3200"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Set server.port = 3200") {
		t.Errorf("output = %q", buf.String())
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "port: 3200") {
		t.Errorf("config file:\n%s", data)
	}
}

func TestConfigInit(t *testing.T) {
	resetViper(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd, _ := newTestCmd()
	if err := runConfigInit(cmd, nil); err != nil {
		t.Fatal(err)
	}

	viper.SetConfigFile(appconfig.ConfigFile())
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("generated config is not readable: %v", err)
	}
	cfg, err := appconfig.Load()
	if err != nil {
		t.Fatalf("generated config is invalid: %v", err)
	}
	if cfg.Server.Port != 3100 || cfg.Agent.Backend != appconfig.BackendClaudeCLI {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := runConfigInit(cmd, nil); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestConfigValidate(t *testing.T) {
	resetViper(t)

	cmd, buf := newTestCmd()
	if err := runConfigValidate(cmd, nil); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if !strings.Contains(buf.String(), "valid") {
		t.Errorf("output = %q", buf.String())
	}

	viper.Set("events.trim_to", 10000)
	if err := runConfigValidate(cmd, nil); err == nil {
		t.Error("expected validation error")
	}
}
