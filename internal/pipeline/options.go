package pipeline

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/metrics"
)

// Option configures an Orchestrator.
type Option func(*config)

type config struct {
	logger      *logging.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxParallel int
	newID       func() string
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records phase and child activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracer overrides the tracer used for operation and phase spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) { c.tracer = t }
}

// WithMaxParallel bounds how many tasks of one group run at once.
// Zero or less means unbounded.
func WithMaxParallel(n int) Option {
	return func(c *config) { c.maxParallel = n }
}

// WithIDGenerator overrides how operation IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) { c.newID = fn }
}

// RunOption configures a single pipeline run.
type RunOption func(*runConfig)

type runConfig struct {
	policy Policy
}

// WithPolicy installs a policy consulted after each phase.
func WithPolicy(p Policy) RunOption {
	return func(c *runConfig) { c.policy = p }
}
