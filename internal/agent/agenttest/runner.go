// Package agenttest provides a scripted agent.Runner for tests.
package agenttest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Iron-Ham/agentops/internal/agent"
)

// Step is one scripted action.
type Step struct {
	emit     json.RawMessage
	askID    string
	question string
	fail     error
	sleep    time.Duration
	block    bool
	panicMsg string
}

// Emit sends raw as an agent message.
func Emit(raw json.RawMessage) Step { return Step{emit: raw} }

// Text sends an assistant text message.
func Text(s string) Step { return Step{emit: agent.AssistantText(s)} }

// Ask emits an AskUserQuestion tool use and waits for the answer.
func Ask(id, question string) Step { return Step{askID: id, question: question} }

// Fail ends the run with an error.
func Fail(msg string) Step { return Step{fail: errors.New(msg)} }

// Sleep pauses the run, honoring cancellation.
func Sleep(d time.Duration) Step { return Step{sleep: d} }

// Block waits until the run is cancelled.
func Block() Step { return Step{block: true} }

// Panic makes the runner panic.
func Panic(msg string) Step { return Step{panicMsg: msg} }

// Runner plays back scripts keyed by prompt. Prompts without a script run
// Default, or succeed immediately when Default is empty.
type Runner struct {
	mu      sync.Mutex
	scripts map[string][]Step
	Default []Step

	requests []agent.Request
	answers  map[string]map[string]string
}

// New creates an empty Runner.
func New() *Runner {
	return &Runner{
		scripts: make(map[string][]Step),
		answers: make(map[string]map[string]string),
	}
}

// On sets the script for prompt and returns r for chaining.
func (r *Runner) On(prompt string, steps ...Step) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[prompt] = steps
	return r
}

// Requests returns every request the runner received.
func (r *Runner) Requests() []agent.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]agent.Request(nil), r.requests...)
}

// Answers returns the answers received for a question, if any.
func (r *Runner) Answers(questionID string) (map[string]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.answers[questionID]
	return a, ok
}

// Run implements agent.Runner.
func (r *Runner) Run(ctx context.Context, req agent.Request, s agent.Session) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	steps, ok := r.scripts[req.Prompt]
	if !ok {
		steps = r.Default
	}
	r.mu.Unlock()

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch {
		case st.emit != nil:
			s.Emit(st.emit)
		case st.askID != "":
			input := map[string]any{
				"questions": []any{map[string]any{
					"question":    st.question,
					"options":     []any{},
					"multiSelect": false,
				}},
			}
			raw, _ := json.Marshal(input)
			s.Emit(agent.AssistantToolUse(st.askID, agent.AskUserQuestionTool, input))
			answers, err := s.Ask(ctx, st.askID, raw)
			r.mu.Lock()
			r.answers[st.askID] = answers
			r.mu.Unlock()
			if err != nil {
				return err
			}
			out, _ := json.Marshal(answers)
			s.Emit(agent.ToolResult(st.askID, string(out), false))
		case st.fail != nil:
			return st.fail
		case st.sleep > 0:
			select {
			case <-time.After(st.sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		case st.block:
			<-ctx.Done()
			return ctx.Err()
		case st.panicMsg != "":
			panic(st.panicMsg)
		}
	}
	return nil
}
