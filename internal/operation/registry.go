package operation

import (
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
)

// Task is a live agent task that belongs to an operation.
type Task interface {
	ID() string
	Abort()
	AnswerQuestion(id string, answers map[string]string) bool
}

type entry struct {
	op        *Operation
	bus       *event.Bus
	tasks     []Task
	cancelled bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithBusOptions sets the options used for every operation bus.
func WithBusOptions(opts ...event.Option) Option {
	return func(r *Registry) { r.busOpts = append(r.busOpts, opts...) }
}

// WithLogger sets the registry's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry holds every operation of the process.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	busOpts []event.Option
	logger  *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores op and creates its event bus. A zero status is treated as
// running and a zero start time as now.
func (r *Registry) Register(op Operation) (*event.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[op.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, op.ID)
	}
	if op.Status == "" {
		op.Status = StatusRunning
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now()
	}

	stored := op.clone()
	opts := append([]event.Option{event.WithLogger(r.logger)}, r.busOpts...)
	e := &entry{op: &stored, bus: event.NewBus(opts...)}
	r.entries[op.ID] = e
	r.order = append(r.order, op.ID)

	r.logger.Info("operation registered", "operation_id", op.ID, "type", op.Type, "phases", len(op.Phases))
	return e.bus, nil
}

// Get returns a snapshot of the operation.
func (r *Registry) Get(id string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Operation{}, false
	}
	return e.op.clone(), true
}

// List returns snapshots of every operation in start order.
func (r *Registry) List() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Operation, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].op.clone())
	}
	return out
}

// Running returns snapshots of every running operation in start order.
func (r *Registry) Running() []Operation {
	var out []Operation
	for _, op := range r.List() {
		if op.Status == StatusRunning {
			out = append(out, op)
		}
	}
	return out
}

// Bus returns the event bus of an operation.
func (r *Registry) Bus(id string) (*event.Bus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.bus, true
}

// Events returns the buffered events of an operation.
func (r *Registry) Events(id string) ([]event.Event, error) {
	bus, ok := r.Bus(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bus.Events(), nil
}

// Subscribe registers s on the operation's bus and returns the backlog along
// with a function that detaches s.
func (r *Registry) Subscribe(id string, s event.Subscriber) ([]event.Event, func(), error) {
	bus, ok := r.Bus(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	backlog, sid := bus.Subscribe(s)
	return backlog, func() { bus.Unsubscribe(sid) }, nil
}

// update applies fn to the stored operation under the write lock.
func (r *Registry) update(id string, fn func(e *entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn(e)
}

// AddChild appends a child record.
func (r *Registry) AddChild(id string, child ChildInfo) error {
	return r.update(id, func(e *entry) error {
		e.op.Children = append(e.op.Children, child)
		return nil
	})
}

// SetChildStatus updates a child record.
func (r *Registry) SetChildStatus(id, childID string, status ChildStatus) error {
	return r.update(id, func(e *entry) error {
		for i := range e.op.Children {
			if e.op.Children[i].ID == childID {
				e.op.Children[i].Status = status
				return nil
			}
		}
		return fmt.Errorf("%w: child %s of %s", ErrNotFound, childID, id)
	})
}

// SetPhaseStatus updates a phase record.
func (r *Registry) SetPhaseStatus(id string, index int, status PhaseStatus) error {
	return r.update(id, func(e *entry) error {
		if index < 0 || index >= len(e.op.Phases) {
			return fmt.Errorf("%w: phase %d of %s", ErrNotFound, index, id)
		}
		e.op.Phases[index].Status = status
		return nil
	})
}

// SetWorkspace renames the workspace an operation belongs to.
func (r *Registry) SetWorkspace(id, workspace string) error {
	return r.update(id, func(e *entry) error {
		e.op.Workspace = workspace
		return nil
	})
}

// Finish moves a running operation to its final status.
func (r *Registry) Finish(id string, status Status) error {
	return r.update(id, func(e *entry) error {
		if e.op.Status != StatusRunning {
			return fmt.Errorf("%w: %s", ErrNotRunning, id)
		}
		now := time.Now()
		e.op.Status = status
		e.op.CompletedAt = &now
		return nil
	})
}

// Track records a live task of the operation. A task tracked on a cancelled
// operation is aborted at once.
func (r *Registry) Track(id string, t Task) error {
	var abort bool
	err := r.update(id, func(e *entry) error {
		e.tasks = append(e.tasks, t)
		abort = e.cancelled
		return nil
	})
	if err != nil {
		return err
	}
	if abort {
		t.Abort()
	}
	return nil
}

// Untrack forgets a task once it has finished.
func (r *Registry) Untrack(id, taskID string) {
	_ = r.update(id, func(e *entry) error {
		for i, t := range e.tasks {
			if t.ID() == taskID {
				e.tasks = append(e.tasks[:i:i], e.tasks[i+1:]...)
				break
			}
		}
		return nil
	})
}

// Cancelled reports whether Cancel has been called for the operation.
func (r *Registry) Cancelled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return ok && e.cancelled
}

// Cancel aborts every live task of a running operation. The operation's
// status changes once the orchestrator observes the failures.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.op.Status != StatusRunning {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	e.cancelled = true
	tasks := append([]Task(nil), e.tasks...)
	r.mu.Unlock()

	r.logger.Info("cancelling operation", "operation_id", id, "live_tasks", len(tasks))
	for _, t := range tasks {
		t.Abort()
	}
	return nil
}

// SubmitAnswer delivers answers to the first live task holding questionID.
func (r *Registry) SubmitAnswer(id, questionID string, answers map[string]string) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.op.Status != StatusRunning {
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	tasks := append([]Task(nil), e.tasks...)
	r.mu.RUnlock()

	for _, t := range tasks {
		if t.AnswerQuestion(questionID, answers) {
			r.logger.Info("answer delivered", "operation_id", id, "question_id", questionID, "child_id", t.ID())
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoPendingQuestion, questionID)
}
