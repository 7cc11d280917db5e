// Package anthropicapi runs agent tasks directly against the Anthropic
// Messages API. It has no tools, so tasks never ask questions.
package anthropicapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/logging"
)

const (
	// DefaultModel is used when neither the config nor the request names one.
	DefaultModel = "claude-sonnet-4-20250514"
	// DefaultMaxTokens bounds a response when Config.MaxTokens is unset.
	DefaultMaxTokens = 4096
)

// Config configures the runner.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Runner implements agent.Runner.
type Runner struct {
	client anthropic.Client
	cfg    Config
	logger *logging.Logger
}

// New creates a Runner. Extra request options are passed to the client.
func New(cfg Config, logger *logging.Logger, opts ...option.RequestOption) *Runner {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	return &Runner{
		client: anthropic.NewClient(clientOpts...),
		cfg:    cfg,
		logger: logger,
	}
}

// Run implements agent.Runner. Each finished text block is emitted as an
// assistant message, followed by a result message.
func (r *Runner) Run(ctx context.Context, req agent.Request, s agent.Session) error {
	model := req.Model
	if model == "" {
		model = r.cfg.Model
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: r.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Cwd != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: fmt.Sprintf("The task concerns the repository at %s.", req.Cwd),
		}}
	}

	start := time.Now()
	stream := r.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	var texts []string
	for stream.Next() {
		ev := stream.Current()
		if err := message.Accumulate(ev); err != nil {
			return fmt.Errorf("accumulate stream: %w", err)
		}
		stop, ok := ev.AsAny().(anthropic.ContentBlockStopEvent)
		if !ok {
			continue
		}
		idx := int(stop.Index)
		if idx < 0 || idx >= len(message.Content) {
			continue
		}
		if block := message.Content[idx]; block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
			s.Emit(agent.AssistantText(block.Text))
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic api error: %w", err)
	}

	r.logger.WithChild(req.ID).Debug("message complete",
		"stop_reason", string(message.StopReason),
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
	)
	s.Emit(agent.ResultMessage(agent.ResultSummary{
		Result:     strings.Join(texts, "\n\n"),
		DurationMS: time.Since(start).Milliseconds(),
		NumTurns:   1,
	}))
	return nil
}
