package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "events.trim_to")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateEvents()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 0 and 65535",
		})
	}

	if c.Server.ShutdownTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.shutdown_timeout_seconds",
			Value:   c.Server.ShutdownTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBackends(), c.Agent.Backend) {
		errors = append(errors, ValidationError{
			Field:   "agent.backend",
			Value:   c.Agent.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}

	if c.Agent.MaxTurns < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.max_turns",
			Value:   c.Agent.MaxTurns,
			Message: "must be non-negative",
		})
	}

	if c.Agent.Backend == BackendClaudeCLI && strings.TrimSpace(c.Agent.Claude.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.claude.command",
			Value:   c.Agent.Claude.Command,
			Message: "must not be empty for the claude-cli backend",
		})
	}

	if raw := c.Agent.Claude.RelayURL; raw != "" {
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "agent.claude.relay_url",
				Value:   raw,
				Message: "must be an absolute http(s) URL",
			})
		}
	}

	if c.Agent.Anthropic.MaxTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.anthropic.max_tokens",
			Value:   c.Agent.Anthropic.MaxTokens,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePipeline validates the PipelineConfig
func (c *Config) validatePipeline() []ValidationError {
	var errors []ValidationError

	if c.Pipeline.MaxParallel < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_parallel",
			Value:   c.Pipeline.MaxParallel,
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	return errors
}

// validateEvents validates the EventsConfig
func (c *Config) validateEvents() []ValidationError {
	var errors []ValidationError

	if c.Events.MaxBuffered < 0 {
		errors = append(errors, ValidationError{
			Field:   "events.max_buffered",
			Value:   c.Events.MaxBuffered,
			Message: "must be non-negative (0 = never trim)",
		})
	}

	if c.Events.MaxBuffered > 0 {
		if c.Events.TrimTo <= 0 {
			errors = append(errors, ValidationError{
				Field:   "events.trim_to",
				Value:   c.Events.TrimTo,
				Message: "must be positive when events.max_buffered is set",
			})
		} else if c.Events.TrimTo > c.Events.MaxBuffered {
			errors = append(errors, ValidationError{
				Field:   "events.trim_to",
				Value:   c.Events.TrimTo,
				Message: fmt.Sprintf("must not exceed events.max_buffered (%d)", c.Events.MaxBuffered),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Enabled && strings.ContainsAny(c.Metrics.Namespace, " -.") {
		errors = append(errors, ValidationError{
			Field:   "metrics.namespace",
			Value:   c.Metrics.Namespace,
			Message: "must be a valid Prometheus name segment",
		})
	}

	return errors
}
