package cmd

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/agent/anthropicapi"
	"github.com/Iron-Ham/agentops/internal/agent/claudecli"
	"github.com/Iron-Ham/agentops/internal/agent/relay"
	"github.com/Iron-Ham/agentops/internal/config"
	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/metrics"
	"github.com/Iron-Ham/agentops/internal/operation"
	"github.com/Iron-Ham/agentops/internal/pipeline"
)

// errMissingAPIKey is returned when the anthropic-api backend has no key.
var errMissingAPIKey = errors.New("anthropic-api backend requires agent.anthropic.api_key or ANTHROPIC_API_KEY")

// buildRunner is swapped in tests.
var buildRunner = newRunner

// app holds the components shared by serve and run.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	relay    *relay.Relay
	registry *operation.Registry
	orch     *pipeline.Orchestrator
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func newApp(cfg *config.Config, logger *logging.Logger, relayURL string) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		relay:  relay.New(Version, logger.With("component", "relay")),
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = metrics.MustNew(reg, cfg.Metrics.Namespace)
		a.gatherer = reg
	}

	runner, err := buildRunner(cfg, a.relay, relayURL, logger)
	if err != nil {
		return nil, err
	}

	a.registry = operation.NewRegistry(
		operation.WithLogger(logger.With("component", "registry")),
		operation.WithBusOptions(event.WithLimits(cfg.Events.MaxBuffered, cfg.Events.TrimTo)),
	)
	launcher := agent.NewLauncher(runner,
		agent.WithLogger(logger.With("component", "agent")),
		agent.WithDefaults(agent.Options{
			Cwd:      cfg.Agent.DefaultCwd,
			Model:    cfg.Agent.Model,
			MaxTurns: cfg.Agent.MaxTurns,
		}),
	)
	a.orch = pipeline.NewOrchestrator(a.registry, launcher,
		pipeline.WithLogger(logger.With("component", "pipeline")),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithMaxParallel(cfg.Pipeline.MaxParallel),
	)
	return a, nil
}

// newRunner selects the agent backend named by the configuration.
func newRunner(cfg *config.Config, rl *relay.Relay, relayURL string, logger *logging.Logger) (agent.Runner, error) {
	switch cfg.Agent.Backend {
	case config.BackendAnthropicAPI:
		key := cfg.Agent.Anthropic.ResolvedAPIKey()
		if key == "" {
			return nil, errMissingAPIKey
		}
		return anthropicapi.New(anthropicapi.Config{
			APIKey:    key,
			BaseURL:   cfg.Agent.Anthropic.BaseURL,
			Model:     cfg.Agent.Model,
			MaxTokens: cfg.Agent.Anthropic.MaxTokens,
		}, logger.With("component", "anthropic")), nil
	case config.BackendClaudeCLI, "":
		return claudecli.New(claudecli.Config{
			Command:         cfg.Agent.Claude.Command,
			Model:           cfg.Agent.Model,
			MaxTurns:        cfg.Agent.MaxTurns,
			SkipPermissions: cfg.Agent.Claude.SkipPermissions,
			RelayURL:        relayURL,
		}, claudecli.WithRelay(rl), claudecli.WithLogger(logger.With("component", "claude-cli"))), nil
	}
	return nil, fmt.Errorf("unknown agent backend %q", cfg.Agent.Backend)
}

// relayURLFor returns the configured relay URL, or the /mcp endpoint of a
// server listening on host:port. Wildcard hosts are reached over loopback.
func relayURLFor(cfg *config.Config, host string, port int) string {
	if cfg.Agent.Claude.RelayURL != "" {
		return cfg.Agent.Claude.RelayURL
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/mcp"
}
