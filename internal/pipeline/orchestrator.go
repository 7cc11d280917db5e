package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/logging"
	"github.com/Iron-Ham/agentops/internal/metrics"
	"github.com/Iron-Ham/agentops/internal/operation"
	"github.com/Iron-Ham/agentops/internal/telemetry"
)

// Orchestrator starts and drives pipeline operations.
type Orchestrator struct {
	registry *operation.Registry
	exec     *Executor
	logger   *logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	newID    func() string

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup // tracks run goroutines
}

// NewOrchestrator creates an Orchestrator. It panics if registry or launcher
// is nil.
func NewOrchestrator(registry *operation.Registry, launcher *agent.Launcher, opts ...Option) *Orchestrator {
	if registry == nil {
		panic("pipeline: NewOrchestrator requires a non-nil Registry")
	}
	if launcher == nil {
		panic("pipeline: NewOrchestrator requires a non-nil Launcher")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.tracer == nil {
		cfg.tracer = telemetry.Tracer()
	}
	if cfg.newID == nil {
		cfg.newID = func() string { return "pipe-" + uuid.NewString() }
	}

	return &Orchestrator{
		registry: registry,
		exec: &Executor{
			registry:    registry,
			launcher:    launcher,
			logger:      cfg.logger,
			metrics:     cfg.metrics,
			tracer:      cfg.tracer,
			maxParallel: cfg.maxParallel,
		},
		logger:  cfg.logger,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
		newID:   cfg.newID,
	}
}

// Registry returns the registry operations are recorded in.
func (o *Orchestrator) Registry() *operation.Registry { return o.registry }

// StartPipeline registers a new operation and runs phases in the background.
// It returns the operation as registered, before any phase has run. The
// operation is detached from ctx's cancellation; use the registry to cancel
// it.
func (o *Orchestrator) StartPipeline(ctx context.Context, opType, workspace string, phases []Phase, opts ...RunOption) (operation.Operation, error) {
	for i, p := range phases {
		if err := validatePhase(p, i); err != nil {
			return operation.Operation{}, err
		}
	}

	rc := &runConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shutdown {
		return operation.Operation{}, ErrShuttingDown
	}

	id := o.newID()
	infos := make([]operation.PhaseInfo, len(phases))
	for i, p := range phases {
		infos[i] = operation.PhaseInfo{Index: i, Label: PhaseLabel(p, i), Status: operation.PhasePending}
	}

	bus, err := o.registry.Register(operation.Operation{
		ID:        id,
		Type:      opType,
		Workspace: workspace,
		Phases:    infos,
	})
	if err != nil {
		return operation.Operation{}, fmt.Errorf("register operation: %w", err)
	}
	snapshot, _ := o.registry.Get(id)

	o.metrics.OperationStarted(opType)
	o.logger.WithOperation(id).Info("pipeline started", "type", opType, "workspace", workspace, "phases", len(phases))
	bus.Emit(event.Status(id, fmt.Sprintf("Starting pipeline with %d phases", len(phases))))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := &stopTask{id: id + "-pipeline", cancel: cancel}
	_ = o.registry.Track(id, stop)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer o.registry.Untrack(id, stop.id)
		o.run(runCtx, id, opType, bus, phases, infos, rc.policy)
	}()

	return snapshot, nil
}

// run executes phases sequentially and finalizes the operation.
func (o *Orchestrator) run(ctx context.Context, id, opType string, bus *event.Bus, phases []Phase, infos []operation.PhaseInfo, policy Policy) {
	log := o.logger.WithOperation(id)
	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("operation.id", id),
		attribute.String("operation.type", opType),
		attribute.Int("operation.phases", len(phases)),
	))
	defer span.End()

	total := len(phases)
	success := true

loop:
	for i := 0; i < total; i++ {
		if ctx.Err() != nil || o.registry.Cancelled(id) {
			bus.Emit(event.Status(id, "Pipeline cancelled"))
			log.Info("pipeline cancelled before phase", "phase_index", i)
			success = false
			break loop
		}

		phase := phases[i]
		label := infos[i].Label
		r := phaseRun{opID: id, bus: bus, index: i, total: total, label: label}

		o.phaseUpdate(r, i, label, operation.PhaseRunning)
		ok := o.exec.Execute(ctx, id, i, total, phase)
		if ok {
			o.phaseUpdate(r, i, label, operation.PhaseCompleted)
		} else {
			o.phaseUpdate(r, i, label, operation.PhaseFailed)
		}
		log.WithPhase(i, label).Info("phase finished", "success", ok)

		if policy != nil {
			switch policy.OnPhaseComplete(i, phase, ok) {
			case Abort:
				r.status(fmt.Sprintf("Pipeline aborted after phase %d", i+1))
				success = false
				break loop
			case Skip:
				if i+1 < total {
					o.phaseUpdate(r, i+1, infos[i+1].Label, operation.PhaseSkipped)
					r.status(fmt.Sprintf("Skipping phase %d", i+2))
				}
				i++
				continue
			}
		}

		if !ok {
			r.status(fmt.Sprintf("Phase %d failed, aborting pipeline", i+1))
			success = false
			break loop
		}
	}

	// A cancel that lands while the last phase is finishing still fails the
	// operation.
	if success && o.registry.Cancelled(id) {
		bus.Emit(event.Status(id, "Pipeline cancelled"))
		log.Info("pipeline cancelled after last phase")
		success = false
	}

	o.finalize(id, opType, bus, success)
	if !success {
		span.SetStatus(codes.Error, "pipeline failed")
	}
}

// phaseUpdate records a phase transition and announces it on the bus.
func (o *Orchestrator) phaseUpdate(r phaseRun, index int, label string, status operation.PhaseStatus) {
	_ = o.registry.SetPhaseStatus(r.opID, index, status)
	data := event.PhaseUpdateData(event.PhaseUpdate{
		PhaseIndex:  index,
		PhaseLabel:  label,
		PhaseStatus: string(status),
	})
	r.bus.Emit(event.Status(r.opID, data).WithPhase(index, label))
}

// finalize sets the final status, then emits the pipeline-level complete.
func (o *Orchestrator) finalize(id, opType string, bus *event.Bus, success bool) {
	status, code := operation.StatusCompleted, 0
	if !success {
		status, code = operation.StatusFailed, 1
	}
	if err := o.registry.Finish(id, status); err != nil {
		o.logger.WithOperation(id).Error("failed to finish operation", "error", err)
	}
	o.metrics.OperationFinished(opType, string(status))
	o.logger.WithOperation(id).Info("pipeline finished", "status", string(status))
	bus.Emit(event.Complete(id, code))
}

// Shutdown stops accepting new pipelines, cancels every running operation and
// waits for their goroutines until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.shutdown = true
	o.mu.Unlock()

	for _, op := range o.registry.Running() {
		_ = o.registry.Cancel(op.ID)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopTask lets registry cancellation reach the pipeline's own context, so
// function phases and the phase loop observe it.
type stopTask struct {
	id     string
	cancel context.CancelFunc
}

func (s *stopTask) ID() string                                   { return s.id }
func (s *stopTask) Abort()                                       { s.cancel() }
func (s *stopTask) AnswerQuestion(string, map[string]string) bool { return false }
