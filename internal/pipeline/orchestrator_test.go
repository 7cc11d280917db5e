package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/agent/agenttest"
	"github.com/Iron-Ham/agentops/internal/event"
	"github.com/Iron-Ham/agentops/internal/operation"
)

type harness struct {
	runner   *agenttest.Runner
	registry *operation.Registry
	orch     *Orchestrator
}

func newHarness(opts ...Option) *harness {
	runner := agenttest.New()
	registry := operation.NewRegistry()
	var n atomic.Int64
	opts = append([]Option{WithIDGenerator(func() string {
		return fmt.Sprintf("op-%d", n.Add(1))
	})}, opts...)
	return &harness{
		runner:   runner,
		registry: registry,
		orch:     NewOrchestrator(registry, agent.NewLauncher(runner), opts...),
	}
}

func (h *harness) start(t *testing.T, phases []Phase, opts ...RunOption) operation.Operation {
	t.Helper()
	op, err := h.orch.StartPipeline(context.Background(), "test", "ws", phases, opts...)
	if err != nil {
		t.Fatalf("StartPipeline: %v", err)
	}
	return op
}

func (h *harness) wait(t *testing.T, id string) operation.Operation {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		op, ok := h.registry.Get(id)
		if !ok {
			t.Fatalf("operation %s not registered", id)
		}
		if op.Status != operation.StatusRunning {
			return op
		}
		if time.Now().After(deadline) {
			t.Fatalf("operation %s still running", id)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitEvents waits for the pipeline-level complete event and returns the
// full stream.
func (h *harness) waitEvents(t *testing.T, id string) []event.Event {
	t.Helper()
	h.wait(t, id)
	deadline := time.Now().Add(5 * time.Second)
	for {
		events, _ := h.registry.Events(id)
		if n := len(events); n > 0 && events[n-1].IsPipelineComplete() {
			return events
		}
		if time.Now().After(deadline) {
			t.Fatalf("no pipeline complete event for %s", id)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func statuses(events []event.Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == event.KindStatus {
			out = append(out, e.Data)
		}
	}
	return out
}

func phaseStatuses(op operation.Operation) []operation.PhaseStatus {
	out := make([]operation.PhaseStatus, len(op.Phases))
	for i, p := range op.Phases {
		out[i] = p.Status
	}
	return out
}

func assertPhaseStatuses(t *testing.T, op operation.Operation, want ...operation.PhaseStatus) {
	t.Helper()
	got := phaseStatuses(op)
	if len(got) != len(want) {
		t.Fatalf("phase statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phase %d status = %s, want %s", i, got[i], want[i])
		}
	}
}

func containsStatus(events []event.Event, s string) bool {
	for _, e := range events {
		if e.Type == event.KindStatus && e.Data == s {
			return true
		}
	}
	return false
}

func TestStartPipeline_SinglePhase(t *testing.T) {
	h := newHarness()
	h.runner.On("do A", agenttest.Text("working on A"))

	op := h.start(t, []Phase{SinglePhase{Label: "A", Prompt: "do A", Options: agent.Options{Cwd: "/repo"}}})
	if op.Status != operation.StatusRunning || op.Phases[0].Status != operation.PhasePending {
		t.Errorf("initial snapshot = %+v", op)
	}
	if op.Phases[0].Label != "A" {
		t.Errorf("phase label = %q", op.Phases[0].Label)
	}

	events := h.waitEvents(t, op.ID)
	final := h.wait(t, op.ID)

	if final.Status != operation.StatusCompleted || final.CompletedAt == nil {
		t.Errorf("final = %+v", final)
	}
	assertPhaseStatuses(t, final, operation.PhaseCompleted)
	child, ok := final.Child(op.ID + "-phase-0")
	if !ok || child.Status != operation.ChildCompleted || child.Label != "A" {
		t.Errorf("child = %+v (found=%v)", child, ok)
	}

	if events[0].Data != "Starting pipeline with 1 phases" {
		t.Errorf("first event = %q", events[0].Data)
	}
	if u, ok := events[1].ParsePhaseUpdate(); !ok || u.PhaseStatus != "running" || u.PhaseLabel != "A" {
		t.Errorf("second event should be the running update, got %+v", events[1])
	}
	if events[2].Data != "Phase 1/1: A" || events[2].PhaseIndex == nil || *events[2].PhaseIndex != 0 {
		t.Errorf("third event = %+v", events[2])
	}
	if events[3].Data != "Initializing..." || events[3].ChildLabel != "A" {
		t.Errorf("fourth event = %+v", events[3])
	}
	if events[4].Type != event.KindOutput || events[4].ChildLabel != "A" || events[4].OperationID != op.ID {
		t.Errorf("agent output not re-tagged: %+v", events[4])
	}
	if events[4].PhaseLabel != "A" {
		t.Errorf("agent output missing phase tag: %+v", events[4])
	}
	if events[5].Type != event.KindComplete || events[5].ChildLabel != "A" {
		t.Errorf("child complete = %+v", events[5])
	}

	last := events[len(events)-1]
	if code, _ := last.ExitCode(); !last.IsPipelineComplete() || code != 0 {
		t.Errorf("last event = %+v", last)
	}
	for _, e := range events[:len(events)-1] {
		if e.IsPipelineComplete() {
			t.Error("pipeline complete emitted before the end")
		}
	}

	reqs := h.runner.Requests()
	if len(reqs) != 1 || reqs[0].Options.Cwd != "/repo" || reqs[0].ID != op.ID+"-phase-0" {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestStartPipeline_PhaseStatusOrder(t *testing.T) {
	h := newHarness()
	op := h.start(t, []Phase{
		SinglePhase{Label: "A", Prompt: "a"},
		SinglePhase{Label: "B", Prompt: "b"},
	})
	events := h.waitEvents(t, op.ID)

	seen := map[int][]string{}
	for _, e := range events {
		if u, ok := e.ParsePhaseUpdate(); ok {
			seen[u.PhaseIndex] = append(seen[u.PhaseIndex], u.PhaseStatus)
		}
	}
	for i := range 2 {
		got := strings.Join(seen[i], ",")
		if got != "running,completed" {
			t.Errorf("phase %d transitions = %s", i, got)
		}
	}
}

func TestStartPipeline_GroupPhase(t *testing.T) {
	t.Run("all succeed", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{GroupPhase{Children: []GroupChild{
			{Label: "B1", Prompt: "b1"},
			{Label: "B2", Prompt: "b2"},
		}}})
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusCompleted {
			t.Errorf("status = %s", final.Status)
		}
		if final.Phases[0].Label != "Phase 1: B1, B2" {
			t.Errorf("group label = %q", final.Phases[0].Label)
		}
		if !containsStatus(events, "Phase 1/1: parallel [B1, B2]") {
			t.Errorf("missing parallel status: %v", statuses(events))
		}
		if !containsStatus(events, "Phase 1 group finished (2/2 succeeded)") {
			t.Errorf("missing group summary: %v", statuses(events))
		}
		for j := range 2 {
			if c, ok := final.Child(fmt.Sprintf("%s-phase-0-child-%d", op.ID, j)); !ok || c.Status != operation.ChildCompleted {
				t.Errorf("child %d = %+v", j, c)
			}
		}
	})

	t.Run("one failure fails the group", func(t *testing.T) {
		h := newHarness()
		h.runner.On("b2", agenttest.Fail("nope"))
		op := h.start(t, []Phase{GroupPhase{Children: []GroupChild{
			{Label: "B1", Prompt: "b1"},
			{Label: "B2", Prompt: "b2"},
		}}})
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s", final.Status)
		}
		if !containsStatus(events, "Phase 1 group finished (1/2 succeeded)") {
			t.Errorf("missing group summary: %v", statuses(events))
		}
		if !containsStatus(events, "Phase 1 failed, aborting pipeline") {
			t.Errorf("missing failure status: %v", statuses(events))
		}
		if c, _ := final.Child(op.ID + "-phase-0-child-1"); c.Status != operation.ChildFailed {
			t.Errorf("failed child status = %s", c.Status)
		}
	})

	t.Run("bounded parallelism runs every child", func(t *testing.T) {
		h := newHarness(WithMaxParallel(1))
		children := make([]GroupChild, 4)
		for i := range children {
			children[i] = GroupChild{Label: fmt.Sprintf("c%d", i), Prompt: fmt.Sprintf("p%d", i)}
		}
		op := h.start(t, []Phase{GroupPhase{Children: children}})
		final := h.wait(t, op.ID)
		if final.Status != operation.StatusCompleted || len(h.runner.Requests()) != 4 {
			t.Errorf("status=%s requests=%d", final.Status, len(h.runner.Requests()))
		}
	})

	t.Run("empty group succeeds", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{GroupPhase{}})
		events := h.waitEvents(t, op.ID)
		if h.wait(t, op.ID).Status != operation.StatusCompleted {
			t.Error("empty group should succeed")
		}
		if !containsStatus(events, "Phase 1 group finished (0/0 succeeded)") {
			t.Errorf("statuses = %v", statuses(events))
		}
	})
}

func TestStartPipeline_FailureHaltsLaterPhases(t *testing.T) {
	h := newHarness()
	h.runner.On("b2", agenttest.Fail("broken"))
	var fnCalled atomic.Bool

	op := h.start(t, []Phase{
		SinglePhase{Label: "A", Prompt: "a"},
		GroupPhase{Children: []GroupChild{{Label: "B1", Prompt: "b1"}, {Label: "B2", Prompt: "b2"}}},
		FunctionPhase{Label: "F", Fn: func(context.Context, *PhaseContext) (bool, error) {
			fnCalled.Store(true)
			return true, nil
		}},
	})
	final := h.wait(t, op.ID)

	if final.Status != operation.StatusFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}
	assertPhaseStatuses(t, final, operation.PhaseCompleted, operation.PhaseFailed, operation.PhasePending)
	if fnCalled.Load() {
		t.Error("function phase must not run after a failed phase")
	}
}

func TestStartPipeline_FunctionPhase(t *testing.T) {
	t.Run("context operations", func(t *testing.T) {
		h := newHarness()
		h.runner.On("second", agenttest.Fail("bad"))

		var groupEmpty []bool
		var groupResults []bool
		var single bool
		op := h.start(t, []Phase{FunctionPhase{Label: "Collect", Fn: func(ctx context.Context, pc *PhaseContext) (bool, error) {
			pc.EmitStatus("collecting")
			pc.SetWorkspace("renamed")
			single = pc.RunChild(ctx, "solo", "first", agent.Options{})
			groupEmpty = pc.RunChildGroup(ctx, nil)
			groupResults = pc.RunChildGroup(ctx, []GroupChild{
				{Label: "g1", Prompt: "first"},
				{Label: "g2", Prompt: "second"},
			})
			pc.EmitResult("all collected")
			return true, nil
		}}})
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusCompleted {
			t.Errorf("status = %s", final.Status)
		}
		if final.Workspace != "renamed" {
			t.Errorf("workspace = %q", final.Workspace)
		}
		if !single {
			t.Error("RunChild should succeed")
		}
		if groupEmpty == nil || len(groupEmpty) != 0 {
			t.Errorf("empty RunChildGroup = %#v, want empty slice", groupEmpty)
		}
		if len(groupResults) != 2 || !groupResults[0] || groupResults[1] {
			t.Errorf("group results = %v", groupResults)
		}

		wantChildren := map[string]operation.ChildStatus{
			op.ID + "-phase-0":      operation.ChildCompleted,
			op.ID + "-phase-0-fn-0": operation.ChildCompleted,
			op.ID + "-phase-0-fn-1": operation.ChildCompleted,
			op.ID + "-phase-0-fn-2": operation.ChildFailed,
		}
		for id, want := range wantChildren {
			c, ok := final.Child(id)
			if !ok || c.Status != want {
				t.Errorf("child %s = %+v (found=%v), want %s", id, c, ok, want)
			}
		}

		if !containsStatus(events, "Phase 1/1: Collect") || !containsStatus(events, "collecting") {
			t.Errorf("statuses = %v", statuses(events))
		}
		var result map[string]string
		for _, e := range events {
			if e.Type == event.KindOutput && e.ChildLabel == "" {
				_ = json.Unmarshal([]byte(e.Data), &result)
			}
		}
		if result["type"] != "result" || result["subtype"] != "success" || result["result"] != "all collected" {
			t.Errorf("result event = %v", result)
		}
	})

	t.Run("error fails the phase", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{FunctionPhase{Label: "F", Fn: func(context.Context, *PhaseContext) (bool, error) {
			return true, errors.New("disk full")
		}}})
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s", final.Status)
		}
		if !containsStatus(events, "Phase 1 error: disk full") {
			t.Errorf("statuses = %v", statuses(events))
		}
		if c, _ := final.Child(op.ID + "-phase-0"); c.Status != operation.ChildFailed {
			t.Errorf("slot child = %+v", c)
		}
	})

	t.Run("panic fails the phase", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{FunctionPhase{Label: "F", Fn: func(context.Context, *PhaseContext) (bool, error) {
			panic("unexpected")
		}}})
		if h.wait(t, op.ID).Status != operation.StatusFailed {
			t.Error("panicking function should fail the operation")
		}
	})

	t.Run("false verdict fails the phase", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{FunctionPhase{Label: "F", Fn: func(context.Context, *PhaseContext) (bool, error) {
			return false, nil
		}}})
		if h.wait(t, op.ID).Status != operation.StatusFailed {
			t.Error("false verdict should fail the operation")
		}
	})
}

func TestStartPipeline_Policy(t *testing.T) {
	t.Run("skip marks next phase skipped and continues", func(t *testing.T) {
		h := newHarness()
		h.runner.On("a", agenttest.Fail("a failed"))
		policy := PolicyFunc(func(index int, _ Phase, success bool) Action {
			if index == 0 && !success {
				return Skip
			}
			return Continue
		})

		op := h.start(t, []Phase{
			SinglePhase{Label: "A", Prompt: "a"},
			SinglePhase{Label: "B", Prompt: "b"},
			SinglePhase{Label: "C", Prompt: "c"},
		}, WithPolicy(policy))
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		assertPhaseStatuses(t, final, operation.PhaseFailed, operation.PhaseSkipped, operation.PhaseCompleted)
		if final.Status != operation.StatusCompleted {
			t.Errorf("status = %s", final.Status)
		}
		if !containsStatus(events, "Skipping phase 2") {
			t.Errorf("statuses = %v", statuses(events))
		}
		for _, r := range h.runner.Requests() {
			if r.Prompt == "b" {
				t.Error("skipped phase was launched")
			}
		}
	})

	t.Run("skip on the last phase", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{SinglePhase{Label: "A", Prompt: "a"}},
			WithPolicy(PolicyFunc(func(int, Phase, bool) Action { return Skip })))
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)
		if final.Status != operation.StatusCompleted {
			t.Errorf("status = %s", final.Status)
		}
		assertPhaseStatuses(t, final, operation.PhaseCompleted)
		for _, s := range statuses(events) {
			if strings.HasPrefix(s, "Skipping phase") {
				t.Errorf("unexpected status %q for a phase that does not exist", s)
			}
		}
	})

	t.Run("abort halts with failure", func(t *testing.T) {
		h := newHarness()
		op := h.start(t, []Phase{
			SinglePhase{Label: "A", Prompt: "a"},
			SinglePhase{Label: "B", Prompt: "b"},
		}, WithPolicy(PolicyFunc(func(int, Phase, bool) Action { return Abort })))
		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s", final.Status)
		}
		assertPhaseStatuses(t, final, operation.PhaseCompleted, operation.PhasePending)
		if !containsStatus(events, "Pipeline aborted after phase 1") {
			t.Errorf("statuses = %v", statuses(events))
		}
	})

	t.Run("continue on failure halts", func(t *testing.T) {
		h := newHarness()
		h.runner.On("a", agenttest.Fail("x"))
		op := h.start(t, []Phase{
			SinglePhase{Label: "A", Prompt: "a"},
			SinglePhase{Label: "B", Prompt: "b"},
		}, WithPolicy(PolicyFunc(func(int, Phase, bool) Action { return Continue })))
		final := h.wait(t, op.ID)
		assertPhaseStatuses(t, final, operation.PhaseFailed, operation.PhasePending)
	})
}

func TestStartPipeline_Cancel(t *testing.T) {
	t.Run("cancel running child fails the operation", func(t *testing.T) {
		h := newHarness()
		h.runner.On("a", agenttest.Block())

		op := h.start(t, []Phase{
			SinglePhase{Label: "A", Prompt: "a"},
			SinglePhase{Label: "B", Prompt: "b"},
		})
		deadline := time.Now().Add(5 * time.Second)
		for len(h.runner.Requests()) == 0 {
			if time.Now().After(deadline) {
				t.Fatal("child never launched")
			}
			time.Sleep(time.Millisecond)
		}

		if err := h.registry.Cancel(op.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		final := h.wait(t, op.ID)
		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s", final.Status)
		}
		assertPhaseStatuses(t, final, operation.PhaseFailed, operation.PhasePending)
		if err := h.registry.Cancel(op.ID); !errors.Is(err, operation.ErrNotRunning) {
			t.Errorf("cancel after finish = %v", err)
		}
	})

	t.Run("immediate cancel starts no later phase", func(t *testing.T) {
		h := newHarness()
		h.runner.On("a", agenttest.Block())

		op := h.start(t, []Phase{
			SinglePhase{Label: "A", Prompt: "a"},
			SinglePhase{Label: "B", Prompt: "b"},
		})
		if err := h.registry.Cancel(op.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		final := h.wait(t, op.ID)

		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s", final.Status)
		}
		if final.Phases[1].Status != operation.PhasePending {
			t.Errorf("phase 2 status = %s", final.Phases[1].Status)
		}
		for _, r := range h.runner.Requests() {
			if r.Prompt == "b" {
				t.Error("phase 2 was launched after cancel")
			}
		}
	})

	t.Run("cancel reaches function phases", func(t *testing.T) {
		h := newHarness()
		started := make(chan struct{})
		op := h.start(t, []Phase{FunctionPhase{Label: "wait", Fn: func(ctx context.Context, _ *PhaseContext) (bool, error) {
			close(started)
			<-ctx.Done()
			return false, ctx.Err()
		}}})
		<-started
		_ = h.registry.Cancel(op.ID)
		if h.wait(t, op.ID).Status != operation.StatusFailed {
			t.Error("cancelled function phase should fail")
		}
	})
	t.Run("cancel while the last phase finishes", func(t *testing.T) {
		h := newHarness()
		started := make(chan struct{})
		release := make(chan struct{})
		op := h.start(t, []Phase{FunctionPhase{Label: "host work", Fn: func(context.Context, *PhaseContext) (bool, error) {
			close(started)
			<-release
			return true, nil
		}}})
		<-started
		if err := h.registry.Cancel(op.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		close(release)

		events := h.waitEvents(t, op.ID)
		final := h.wait(t, op.ID)
		if final.Status != operation.StatusFailed {
			t.Errorf("status = %s, want %s", final.Status, operation.StatusFailed)
		}
		if !containsStatus(events, "Pipeline cancelled") {
			t.Errorf("statuses = %v", statuses(events))
		}
		if code, _ := events[len(events)-1].ExitCode(); code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	})
}

func TestStartPipeline_AnswerQuestion(t *testing.T) {
	h := newHarness()
	h.runner.On("a", agenttest.Ask("tool-1", "Proceed?"), agenttest.Text("ok"))

	op := h.start(t, []Phase{SinglePhase{Label: "A", Prompt: "a"}})
	if err := h.registry.SubmitAnswer(op.ID, "unknown", map[string]string{"x": "y"}); !errors.Is(err, operation.ErrNoPendingQuestion) {
		t.Errorf("unknown question = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		err := h.registry.SubmitAnswer(op.ID, "tool-1", map[string]string{"Proceed?": "yes"})
		if err == nil {
			break
		}
		if !errors.Is(err, operation.ErrNoPendingQuestion) || time.Now().After(deadline) {
			t.Fatalf("SubmitAnswer: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	if h.wait(t, op.ID).Status != operation.StatusCompleted {
		t.Error("operation should complete after the answer")
	}
	if a, _ := h.runner.Answers("tool-1"); a["Proceed?"] != "yes" {
		t.Errorf("runner answers = %v", a)
	}
}

func TestStartPipeline_Validation(t *testing.T) {
	h := newHarness()
	cases := map[string][]Phase{
		"nil phase":        {nil},
		"empty prompt":     {SinglePhase{Label: "A"}},
		"empty child":      {GroupPhase{Children: []GroupChild{{Label: "x"}}}},
		"missing function": {FunctionPhase{Label: "F"}},
	}
	for name, phases := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.orch.StartPipeline(context.Background(), "test", "ws", phases)
			if !errors.Is(err, ErrInvalidPhase) {
				t.Errorf("expected ErrInvalidPhase, got %v", err)
			}
		})
	}
	if len(h.registry.List()) != 0 {
		t.Error("invalid pipelines must not be registered")
	}

	t.Run("zero phases completes", func(t *testing.T) {
		op := h.start(t, nil)
		if h.wait(t, op.ID).Status != operation.StatusCompleted {
			t.Error("empty pipeline should complete")
		}
	})
}

func TestOrchestrator_Shutdown(t *testing.T) {
	h := newHarness()
	h.runner.On("a", agenttest.Block())
	op := h.start(t, []Phase{SinglePhase{Label: "A", Prompt: "a"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.orch.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got, _ := h.registry.Get(op.ID); got.Status != operation.StatusFailed {
		t.Errorf("status after shutdown = %s", got.Status)
	}
	if _, err := h.orch.StartPipeline(context.Background(), "test", "ws", nil); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("start after shutdown = %v", err)
	}
}

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		phase Phase
		index int
		want  string
	}{
		{SinglePhase{Label: "Plan"}, 0, "Plan"},
		{FunctionPhase{Label: "Collect"}, 3, "Collect"},
		{GroupPhase{Children: []GroupChild{{Label: "a"}, {Label: "b"}}}, 1, "Phase 2: a, b"},
		{GroupPhase{}, 0, "Phase 1: "},
	}
	for _, tt := range tests {
		if got := PhaseLabel(tt.phase, tt.index); got != tt.want {
			t.Errorf("PhaseLabel(%v, %d) = %q, want %q", tt.phase.Kind(), tt.index, got, tt.want)
		}
	}
}
