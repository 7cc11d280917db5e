package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
)

// Handle controls one running agent task.
type Handle struct {
	id     string
	bus    *event.Bus
	cancel context.CancelFunc
	done   chan struct{}
	logger *logging.Logger

	// streamMu orders emission against the terminal transition so that no
	// event follows complete.
	streamMu sync.Mutex

	mu       sync.Mutex
	aborted  bool
	finished bool
	exitCode int
	pending  map[string]chan map[string]string
}

func newHandle(id string, cancel context.CancelFunc, logger *logging.Logger) *Handle {
	return &Handle{
		id:      id,
		bus:     event.NewBus(event.WithLimits(0, 0), event.WithLogger(logger)),
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  logger,
		pending: make(map[string]chan map[string]string),
	}
}

// ID returns the task ID. Events emitted by the handle carry it as their
// operation ID.
func (h *Handle) ID() string { return h.id }

// Subscribe delivers every event emitted so far, then every later one.
// The returned function detaches the subscriber and may be called repeatedly.
func (h *Handle) Subscribe(s event.Subscriber) (unsubscribe func()) {
	id := h.bus.Replay(s)
	return func() { h.bus.Unsubscribe(id) }
}

// Events returns a copy of everything the handle has emitted.
func (h *Handle) Events() []event.Event {
	return h.bus.Events()
}

// Done is closed once the terminal complete event has been emitted.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the terminal exit code. It is only meaningful after Done
// is closed.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Finished reports whether the terminal complete event has been emitted.
func (h *Handle) Finished() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

// Abort cancels the task. Pending questions resolve with empty answers and
// a complete event with exit code 1 is emitted unless the task already
// finished. Abort is idempotent.
func (h *Handle) Abort() {
	h.mu.Lock()
	if h.aborted {
		h.mu.Unlock()
		return
	}
	h.aborted = true
	pending := h.pending
	h.pending = make(map[string]chan map[string]string)
	h.mu.Unlock()

	for qid, ch := range pending {
		h.logger.Debug("resolving pending question on abort", "question_id", qid)
		ch <- map[string]string{}
	}

	h.cancel()
	h.finish(1, "")
}

// AnswerQuestion resolves the pending question id. It reports false when no
// such question is pending.
func (h *Handle) AnswerQuestion(id string, answers map[string]string) bool {
	h.mu.Lock()
	ch, ok := h.pending[id]
	if ok {
		delete(h.pending, id)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	if answers == nil {
		answers = map[string]string{}
	}
	ch <- answers
	return true
}

// PendingQuestions returns the IDs of unanswered questions, sorted.
func (h *Handle) PendingQuestions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.pending))
	for id := range h.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Handle) run(ctx context.Context, runner Runner, req Request) {
	err := h.invoke(ctx, runner, req)

	h.mu.Lock()
	aborted := h.aborted
	h.mu.Unlock()

	switch {
	case aborted:
		h.finish(1, "")
	case err != nil:
		h.logger.Warn("agent task failed", "error", err)
		h.finish(1, err.Error())
	default:
		h.finish(0, "")
	}
	h.cancel()
}

func (h *Handle) invoke(ctx context.Context, runner Runner, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent runner panicked: %v", r)
		}
	}()
	return runner.Run(ctx, req, session{h})
}

// emit publishes e unless the task has already finished.
func (h *Handle) emit(e event.Event) {
	h.streamMu.Lock()
	defer h.streamMu.Unlock()

	if h.Finished() {
		return
	}
	h.bus.Emit(e)
}

func (h *Handle) finish(exitCode int, errMsg string) {
	h.streamMu.Lock()
	defer h.streamMu.Unlock()

	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return
	}
	h.finished = true
	h.exitCode = exitCode
	h.mu.Unlock()

	if errMsg != "" {
		h.bus.Emit(event.Error(h.id, errMsg))
	}
	h.bus.Emit(event.Complete(h.id, exitCode))
	close(h.done)
}

func (h *Handle) ask(ctx context.Context, id string, _ json.RawMessage) (map[string]string, error) {
	ch := make(chan map[string]string, 1)

	h.mu.Lock()
	if h.aborted || h.finished {
		h.mu.Unlock()
		return map[string]string{}, nil
	}
	h.pending[id] = ch
	h.mu.Unlock()

	h.logger.Info("agent asked a question", "question_id", id)

	select {
	case answers := <-ch:
		return answers, nil
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		return map[string]string{}, ctx.Err()
	}
}

type session struct{ h *Handle }

func (s session) Emit(raw json.RawMessage) {
	s.h.emit(event.Output(s.h.id, string(raw)))
}

func (s session) Ask(ctx context.Context, questionID string, input json.RawMessage) (map[string]string, error) {
	return s.h.ask(ctx, questionID, input)
}
