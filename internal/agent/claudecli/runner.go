// Package claudecli runs agent tasks through the Claude command line tool in
// stream-json mode.
package claudecli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/agent/relay"
	"github.com/Iron-Ham/agentops/internal/logging"
)

const (
	// DefaultCommand is the CLI binary looked up on PATH.
	DefaultCommand = "claude"

	maxLineSize  = 2 * 1024 * 1024
	stderrLimit  = 4096
	interruptTTL = 5 * time.Second
)

// Config configures the runner.
type Config struct {
	// Command is the CLI binary. Empty means DefaultCommand.
	Command string
	// Model and MaxTurns apply when a request does not set them.
	Model    string
	MaxTurns int
	// SkipPermissions runs the CLI without permission prompts. Questions
	// cannot be answered in this mode.
	SkipPermissions bool
	// RelayURL is where the CLI reaches the permission relay.
	RelayURL string
	// Env is appended to the process environment.
	Env []string
}

// Runner implements agent.Runner.
type Runner struct {
	cfg    Config
	relay  *relay.Relay
	logger *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRelay routes permission prompts through rl.
func WithRelay(rl *relay.Relay) Option {
	return func(r *Runner) { r.relay = rl }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner.
func New(cfg Config, opts ...Option) *Runner {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = DefaultCommand
	}
	r := &Runner{cfg: cfg, logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) interactive() bool {
	return !r.cfg.SkipPermissions && r.relay != nil && r.cfg.RelayURL != ""
}

// Args returns the CLI arguments for req. mcpConfig is the path of the relay
// config file and is ignored when empty.
func (r *Runner) Args(req agent.Request, mcpConfig string) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}

	model := req.Model
	if model == "" {
		model = r.cfg.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	maxTurns := req.MaxTurns
	if maxTurns == 0 {
		maxTurns = r.cfg.MaxTurns
	}
	if maxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(maxTurns))
	}

	switch {
	case r.cfg.SkipPermissions:
		args = append(args, "--dangerously-skip-permissions")
	case mcpConfig != "":
		args = append(args, "--mcp-config", mcpConfig, "--permission-prompt-tool", relay.PermissionPromptTool)
	}

	return append(args, "--", req.Prompt)
}

// Run implements agent.Runner.
func (r *Runner) Run(ctx context.Context, req agent.Request, s agent.Session) error {
	log := r.logger.WithChild(req.ID)

	var mcpConfig string
	if r.interactive() {
		unregister := r.relay.Register(ctx, req.ID, s)
		defer unregister()

		path, err := writeMCPConfig(r.cfg.RelayURL, req.ID)
		if err != nil {
			return err
		}
		defer os.Remove(path)
		mcpConfig = path
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command, r.Args(req, mcpConfig)...)
	cmd.Dir = req.Cwd
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptTTL

	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("claude stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.cfg.Command, err)
	}
	log.Debug("claude started", "pid", cmd.Process.Pid, "cwd", req.Cwd)

	var result resultLine
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		s.Emit(raw)

		var probe resultLine
		if json.Unmarshal(raw, &probe) == nil && probe.Type == "result" {
			result = probe
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if waitErr != nil {
		return errors.New(formatExit(r.cfg.Command, waitErr, stderr.String()))
	}
	if scanErr != nil {
		return fmt.Errorf("read claude output: %w", scanErr)
	}
	if result.IsError {
		msg := strings.TrimSpace(result.Result)
		if msg == "" {
			msg = result.Subtype
		}
		return fmt.Errorf("agent reported an error: %s", msg)
	}
	return nil
}

type resultLine struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
}

func writeMCPConfig(url, taskID string) (string, error) {
	data, err := relay.MCPConfig(url, taskID)
	if err != nil {
		return "", fmt.Errorf("encode mcp config: %w", err)
	}
	f, err := os.CreateTemp("", "agentops-mcp-*.json")
	if err != nil {
		return "", fmt.Errorf("create mcp config: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write mcp config: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

func formatExit(command string, err error, stderrTail string) string {
	msg := fmt.Sprintf("%s exited: %v", filepath.Base(command), err)
	if tail := strings.Join(strings.Fields(stderrTail), " "); tail != "" {
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		msg += " | stderr tail: " + tail
	}
	if strings.Contains(strings.ToLower(stderrTail), "not logged in") {
		msg += " (run `claude login`)"
	}
	return msg
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
