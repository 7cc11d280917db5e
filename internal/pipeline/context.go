package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Iron-Ham/agentops/internal/agent"
	"github.com/Iron-Ham/agentops/internal/event"
)

// PhaseContext is the handle a function phase uses to interact with its
// operation.
type PhaseContext struct {
	exec *Executor
	run  phaseRun

	mu      sync.Mutex
	counter int
}

// OperationID returns the ID of the running operation.
func (pc *PhaseContext) OperationID() string { return pc.run.opID }

// PhaseIndex returns the zero-based index of the running phase.
func (pc *PhaseContext) PhaseIndex() int { return pc.run.index }

// EmitStatus emits a status line tagged with the phase.
func (pc *PhaseContext) EmitStatus(msg string) {
	pc.run.status(msg)
}

// EmitResult emits a final result message tagged with the phase.
func (pc *PhaseContext) EmitResult(msg string) {
	data, _ := json.Marshal(struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
		Result  string `json:"result"`
	}{"result", "success", msg})
	pc.run.bus.Emit(pc.run.tag(event.Output(pc.run.opID, string(data))))
}

// SetWorkspace renames the workspace of the operation, for phases that
// create the workspace they run in.
func (pc *PhaseContext) SetWorkspace(name string) {
	_ = pc.exec.registry.SetWorkspace(pc.run.opID, name)
}

// RunChild launches one task and waits for it. It reports success.
func (pc *PhaseContext) RunChild(ctx context.Context, label, prompt string, opts agent.Options) bool {
	t := pc.newTask(GroupChild{Label: label, Prompt: prompt, Options: opts})
	return pc.exec.runTask(ctx, pc.run, t)
}

// RunChildGroup launches tasks concurrently and waits for all of them.
// Results are in input order; an empty input yields an empty result.
func (pc *PhaseContext) RunChildGroup(ctx context.Context, children []GroupChild) []bool {
	tasks := make([]task, len(children))
	for i, c := range children {
		tasks[i] = pc.newTask(c)
	}
	return pc.exec.runTasks(ctx, pc.run, tasks)
}

// newTask allocates the next function-child ID and registers its record.
func (pc *PhaseContext) newTask(c GroupChild) task {
	pc.mu.Lock()
	k := pc.counter
	pc.counter++
	pc.mu.Unlock()

	t := task{
		id:     fmt.Sprintf("%s-phase-%d-fn-%d", pc.run.opID, pc.run.index, k),
		label:  c.Label,
		prompt: c.Prompt,
		opts:   c.Options,
	}
	pc.exec.addChild(pc.run, t)
	return t
}
