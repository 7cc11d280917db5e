package agent

import (
	"context"

	"github.com/Iron-Ham/agentops/internal/logging"
)

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithLogger sets the launcher's logger.
func WithLogger(l *logging.Logger) LauncherOption {
	return func(la *Launcher) {
		if l != nil {
			la.logger = l
		}
	}
}

// WithDefaults sets options applied to every launch where the caller left
// the field empty.
func WithDefaults(o Options) LauncherOption {
	return func(la *Launcher) { la.defaults = o }
}

// Launcher starts agent tasks on a Runner.
type Launcher struct {
	runner   Runner
	logger   *logging.Logger
	defaults Options
}

// NewLauncher creates a Launcher. It panics if runner is nil.
func NewLauncher(runner Runner, opts ...LauncherOption) *Launcher {
	if runner == nil {
		panic("agent: NewLauncher requires a non-nil Runner")
	}
	l := &Launcher{runner: runner, logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts prompt as task id and returns its handle immediately. The
// task runs until it finishes, ctx is cancelled, or the handle is aborted.
func (l *Launcher) Launch(ctx context.Context, id, prompt string, opts Options) *Handle {
	if opts.Cwd == "" {
		opts.Cwd = l.defaults.Cwd
	}
	if opts.Model == "" {
		opts.Model = l.defaults.Model
	}
	if opts.MaxTurns == 0 {
		opts.MaxTurns = l.defaults.MaxTurns
	}

	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(id, cancel, l.logger.WithChild(id))
	req := Request{ID: id, Prompt: prompt, Options: opts}

	l.logger.Debug("launching agent task", "child_id", id, "cwd", opts.Cwd)
	go h.run(ctx, l.runner, req)
	return h
}
