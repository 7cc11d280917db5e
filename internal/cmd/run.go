package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/config"
	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/operation"
	"github.com/Iron-Ham/agentops/internal/render"
	"github.com/Iron-Ham/agentops/internal/server"
	"github.com/Iron-Ham/agentops/internal/workflow"
)

const answerRetryWindow = 5 * time.Second

type runOptions struct {
	file        string
	workflow    string
	workspace   string
	instruction string
	description string
	draft       bool
	noColor     bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline in the foreground",
	Long: `Run a pipeline in this process and print its events.

The pipeline comes from a YAML file:

  type: refactor
  workspace: api
  phases:
    - kind: single
      label: Plan
      prompt: Write PLAN.md for extracting the billing client
      cwd: ./api
    - kind: group
      children:
        - label: client
          prompt: Extract the billing client
        - label: tests
          prompt: Add tests for the billing client

or from a built-in workflow with --workflow and --workspace:

  agentops run --workflow init --description "PROJ-12: fix session refresh"
  agentops run --workflow create-pr --workspace feature-x --draft=false
  agentops run --workflow update-todo --workspace feature-x --instruction "add retries"

Questions asked
by agents are answered on stdin; a number picks that option. Ctrl-C cancels
the operation.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.file, "file", "f", "", "pipeline YAML file")
	runCmd.Flags().StringVar(&runOpts.workflow, "workflow", "", "built-in workflow to run (init, execute, review, create-pr, update-todo)")
	runCmd.Flags().StringVar(&runOpts.workspace, "workspace", "", "workspace name (optional for init)")
	runCmd.Flags().StringVar(&runOpts.instruction, "instruction", "", "change to apply to the TODO files (update-todo)")
	runCmd.Flags().StringVar(&runOpts.description, "description", "", "task description (init)")
	runCmd.Flags().BoolVar(&runOpts.draft, "draft", true, "open draft pull requests (create-pr)")
	runCmd.Flags().BoolVar(&runOpts.noColor, "no-color", false, "disable styled output")
	runCmd.MarkFlagsMutuallyExclusive("file", "workflow")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := runLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	color, width := terminalInfo(out)
	if runOpts.noColor {
		color = false
	}
	return runForeground(ctx, cfg, logger, runOpts, cmd.InOrStdin(), out, render.WithColor(color), render.WithWidth(width))
}

// runLogger writes to the configured log directory. Without one, only errors
// reach stderr so they do not interleave with rendered events.
func runLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	if dir := cfg.Logging.ResolveDir(); dir != "" {
		return logging.NewLogger(dir, cfg.Logging.Level)
	}
	return logging.NewWriterLogger(stderr, logging.LevelError), nil
}

func terminalInfo(w io.Writer) (color bool, width int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 0
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil {
		width = w
	}
	return true, width
}

// runForeground starts the pipeline described by opts and renders its events
// until the pipeline-level complete event. It returns an error when the
// operation does not complete successfully.
func runForeground(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts runOptions, in io.Reader, out io.Writer, renderOpts ...render.Option) error {
	plan, err := loadPlan(cfg, opts)
	if err != nil {
		return err
	}

	// The relay listens on loopback so the CLI backend can route permission
	// prompts back to this process.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start permission relay: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	a, err := newApp(cfg, logger, relayURLFor(cfg, "127.0.0.1", port))
	if err != nil {
		_ = ln.Close()
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/mcp", a.relay.Handler())
	relaySrv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = relaySrv.Serve(ln) }()
	defer func() { _ = relaySrv.Close() }()

	op, err := a.orch.StartPipeline(context.Background(), plan.Type, plan.Workspace, plan.Phases)
	if err != nil {
		return err
	}
	bus, _ := a.registry.Bus(op.ID)
	events := bus.Stream(context.Background(), event.Event.IsPipelineComplete)

	r := render.New(out, renderOpts...)
	p := newPrompter(in, out)
	interrupted := ctx.Done()

loop:
	for {
		select {
		case e, ok := <-events:
			if !ok {
				break loop
			}
			if err := r.Render(e); err != nil {
				logger.Warn("failed to render event", "error", err)
			}
			if e.Type != event.KindOutput {
				continue
			}
			for _, entry := range agent.ParseMessage(e.Data) {
				if entry.Kind != agent.EntryAsk {
					continue
				}
				answers, ok := p.answer(ctx, entry.Questions)
				if !ok {
					continue
				}
				if err := submitAnswer(ctx, a.registry, op.ID, entry.ToolID, answers); err != nil {
					fmt.Fprintf(out, "could not deliver answer: %v\n", err)
				}
			}
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(out, "Cancelling operation...")
			if err := a.registry.Cancel(op.ID); err != nil && !errors.Is(err, operation.ErrNotRunning) {
				logger.Warn("cancel failed", "operation_id", op.ID, "error", err)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := a.orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("orchestrator shutdown incomplete", "error", err)
	}

	final, _ := a.registry.Get(op.ID)
	if final.Status != operation.StatusCompleted {
		return fmt.Errorf("operation %s %s", op.ID, final.Status)
	}
	return nil
}

// loadPlan builds the pipeline from a built-in workflow or a YAML file.
func loadPlan(cfg *config.Config, opts runOptions) (workflow.Plan, error) {
	if opts.workflow != "" {
		return workflow.NewCatalog(cfg.Workspace.ResolveRoot()).Build(opts.workflow, opts.workspace,
			workflow.WithInstruction(opts.instruction),
			workflow.WithDescription(opts.description),
			workflow.WithDraft(opts.draft))
	}
	if opts.file == "" {
		return workflow.Plan{}, errors.New("either --file or --workflow is required")
	}

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return workflow.Plan{}, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var req server.StartRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return workflow.Plan{}, fmt.Errorf("failed to parse pipeline file %s: %w", opts.file, err)
	}

	// Relative working directories are relative to the pipeline file.
	base := filepath.Dir(opts.file)
	resolveCwds(base, req.Phases)

	phases, err := server.BuildPhases(req.Phases)
	if err != nil {
		return workflow.Plan{}, err
	}
	if req.Type == "" {
		req.Type = "pipeline"
	}
	if opts.workspace != "" {
		req.Workspace = opts.workspace
	}
	return workflow.Plan{Type: req.Type, Workspace: req.Workspace, Phases: phases}, nil
}

func resolveCwds(base string, phases []server.PhaseRequest) {
	for i := range phases {
		if cwd := phases[i].Cwd; cwd != "" && !filepath.IsAbs(cwd) {
			phases[i].Cwd = filepath.Join(base, cwd)
		}
		resolveCwds(base, phases[i].Children)
	}
}

// submitAnswer retries briefly because a question is announced on the event
// stream before the agent starts waiting for it.
func submitAnswer(ctx context.Context, reg *operation.Registry, opID, questionID string, answers map[string]string) error {
	deadline := time.Now().Add(answerRetryWindow)
	for {
		err := reg.SubmitAnswer(opID, questionID, answers)
		if !errors.Is(err, operation.ErrNoPendingQuestion) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prompter reads answers from a line-oriented reader.
type prompter struct {
	out   io.Writer
	lines chan string
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{out: out, lines: make(chan string)}
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
	return p
}

// answer asks each question in turn. It reports false when input ends or
// ctx is done before every question is answered.
func (p *prompter) answer(ctx context.Context, questions []agent.Question) (map[string]string, bool) {
	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		fmt.Fprintf(p.out, "%s > ", q.Question)
		select {
		case line, ok := <-p.lines:
			if !ok {
				fmt.Fprintln(p.out)
				return nil, false
			}
			answers[q.Question] = resolveAnswer(q, line)
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return nil, false
		}
	}
	return answers, true
}

// resolveAnswer maps an option number to its label; anything else is taken
// as a free-form answer.
func resolveAnswer(q agent.Question, line string) string {
	line = strings.TrimSpace(line)
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1].Label
	}
	return line
}
