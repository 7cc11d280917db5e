package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/metrics"
	"github.com/Iron-Ham/agentops/internal/operation"
)

// Executor runs a single phase of an operation.
type Executor struct {
	registry    *operation.Registry
	launcher    *agent.Launcher
	logger      *logging.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	maxParallel int
}

// phaseRun identifies the phase being executed.
type phaseRun struct {
	opID  string
	bus   *event.Bus
	index int
	total int
	label string
}

// task is one agent task to launch and await.
type task struct {
	id     string
	label  string
	prompt string
	opts   agent.Options
}

func (r phaseRun) tag(e event.Event) event.Event {
	return e.WithPhase(r.index, r.label)
}

func (r phaseRun) status(msg string) {
	r.bus.Emit(r.tag(event.Status(r.opID, msg)))
}

// Execute runs phase as phase index of total and reports its success. It
// returns only after every task the phase launched has finished.
func (x *Executor) Execute(ctx context.Context, opID string, index, total int, phase Phase) bool {
	bus, ok := x.registry.Bus(opID)
	if !ok {
		x.logger.Error("execute called for unknown operation", "operation_id", opID)
		return false
	}
	r := phaseRun{opID: opID, bus: bus, index: index, total: total, label: PhaseLabel(phase, index)}

	ctx, span := x.tracer.Start(ctx, "pipeline.phase", trace.WithAttributes(
		attribute.String("operation.id", opID),
		attribute.Int("phase.index", index),
		attribute.String("phase.kind", string(phase.Kind())),
		attribute.String("phase.label", r.label),
	))
	defer span.End()

	start := time.Now()
	var success bool
	switch p := phase.(type) {
	case SinglePhase:
		success = x.executeSingle(ctx, r, p)
	case GroupPhase:
		success = x.executeGroup(ctx, r, p)
	case FunctionPhase:
		success = x.executeFunction(ctx, r, p)
	}

	status := string(operation.PhaseCompleted)
	if !success {
		status = string(operation.PhaseFailed)
	}
	span.SetAttributes(attribute.Bool("phase.success", success))
	x.metrics.ObservePhase(string(phase.Kind()), status, time.Since(start))
	return success
}

func (x *Executor) executeSingle(ctx context.Context, r phaseRun, p SinglePhase) bool {
	r.status(fmt.Sprintf("Phase %d/%d: %s", r.index+1, r.total, p.Label))
	t := task{
		id:     fmt.Sprintf("%s-phase-%d", r.opID, r.index),
		label:  p.Label,
		prompt: p.Prompt,
		opts:   p.Options,
	}
	x.addChild(r, t)
	return x.runTask(ctx, r, t)
}

func (x *Executor) executeGroup(ctx context.Context, r phaseRun, p GroupPhase) bool {
	r.status(fmt.Sprintf("Phase %d/%d: parallel [%s]", r.index+1, r.total, strings.Join(childLabels(p.Children), ", ")))

	tasks := make([]task, len(p.Children))
	for j, c := range p.Children {
		tasks[j] = task{
			id:     fmt.Sprintf("%s-phase-%d-child-%d", r.opID, r.index, j),
			label:  c.Label,
			prompt: c.Prompt,
			opts:   c.Options,
		}
		x.addChild(r, tasks[j])
	}

	results := x.runTasks(ctx, r, tasks)
	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}
	r.status(fmt.Sprintf("Phase %d group finished (%d/%d succeeded)", r.index+1, succeeded, len(results)))
	return succeeded == len(results)
}

func (x *Executor) executeFunction(ctx context.Context, r phaseRun, p FunctionPhase) bool {
	r.status(fmt.Sprintf("Phase %d/%d: %s", r.index+1, r.total, p.Label))

	slotID := fmt.Sprintf("%s-phase-%d", r.opID, r.index)
	x.addChild(r, task{id: slotID, label: p.Label})

	pc := &PhaseContext{exec: x, run: r}
	success, err := callPhaseFunc(ctx, p.Fn, pc)
	if err != nil {
		x.logger.WithOperation(r.opID).WithPhase(r.index, r.label).Warn("function phase failed", "error", err)
		r.status(fmt.Sprintf("Phase %d error: %v", r.index+1, err))
		success = false
	}

	status := operation.ChildCompleted
	if !success {
		status = operation.ChildFailed
	}
	_ = x.registry.SetChildStatus(r.opID, slotID, status)
	return success
}

// callPhaseFunc runs fn, converting a panic into an error.
func callPhaseFunc(ctx context.Context, fn PhaseFunc, pc *PhaseContext) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ok, err = false, fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, pc)
}

func (x *Executor) addChild(r phaseRun, t task) {
	_ = x.registry.AddChild(r.opID, operation.ChildInfo{ID: t.id, Label: t.label, Status: operation.ChildRunning})
}

// runTasks runs tasks concurrently and returns their results in order.
func (x *Executor) runTasks(ctx context.Context, r phaseRun, tasks []task) []bool {
	if len(tasks) == 0 {
		return []bool{}
	}
	limit := x.maxParallel
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}
	mapper := iter.Mapper[task, bool]{MaxGoroutines: limit}
	return mapper.Map(tasks, func(t *task) bool {
		return x.runTask(ctx, r, *t)
	})
}

// runTask launches t, wires its events into the operation bus and waits for
// its terminal event. The child record must already exist.
func (x *Executor) runTask(ctx context.Context, r phaseRun, t task) bool {
	log := x.logger.WithOperation(r.opID).WithChild(t.id)

	// Tasks outlive the caller's cancellation; they stop through the registry.
	h := x.launcher.Launch(context.WithoutCancel(ctx), t.id, t.prompt, t.opts)
	x.metrics.ChildStarted()
	_ = x.registry.Track(r.opID, h)

	r.bus.Emit(r.tag(event.Status(r.opID, "Initializing...").WithChild(t.label)))

	done := make(chan bool, 1)
	unsubscribe := h.Subscribe(event.SubscriberFunc(func(e event.Event) {
		r.bus.Emit(r.tag(e.Retarget(r.opID).WithChild(t.label)))
		if e.Type != event.KindComplete {
			return
		}
		code, _ := e.ExitCode()
		status := operation.ChildCompleted
		if code != 0 {
			status = operation.ChildFailed
		}
		_ = x.registry.SetChildStatus(r.opID, t.id, status)
		x.registry.Untrack(r.opID, t.id)
		x.metrics.ChildFinished(string(status))
		done <- code == 0
	}))
	defer unsubscribe()

	ok := <-done
	log.Info("child finished", "label", t.label, "success", ok)
	return ok
}
