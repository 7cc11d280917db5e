package agent

import (
	"context"
	"encoding/json"
)

// Options are per-task launch settings.
type Options struct {
	// Cwd is the working directory the agent operates in.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	// Model overrides the runner's default model.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// MaxTurns limits agentic turns; 0 uses the runner default.
	MaxTurns int `json:"maxTurns,omitempty" yaml:"max_turns,omitempty"`
}

// Request is a single task handed to a Runner.
type Request struct {
	ID     string
	Prompt string
	Options
}

// Session is the channel a Runner uses to report back to its Handle.
type Session interface {
	// Emit publishes one raw agent message.
	Emit(raw json.RawMessage)
	// Ask registers a pending question under questionID and blocks until it
	// is answered or the task is aborted. Abort resolves it with an empty map.
	Ask(ctx context.Context, questionID string, input json.RawMessage) (map[string]string, error)
}

// Runner executes a task against the agent service. Returning nil means the
// task succeeded.
type Runner interface {
	Run(ctx context.Context, req Request, s Session) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request, s Session) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, req Request, s Session) error {
	return f(ctx, req, s)
}
