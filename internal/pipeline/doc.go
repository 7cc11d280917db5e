// Package pipeline runs operations as ordered lists of phases.
//
// A [Phase] is one of three kinds:
//
//   - [SinglePhase]: one agent task
//   - [GroupPhase]: several agent tasks in parallel; succeeds only if all do
//   - [FunctionPhase]: custom code that may launch tasks through a [PhaseContext]
//
// The [Orchestrator] registers the operation, runs phases strictly in order
// on its own goroutine, and emits lifecycle status events onto the operation's
// bus. A [Policy] may skip the next phase or abort the pipeline after each
// phase. Without a policy, the first failed phase halts the pipeline.
//
// # Usage
//
//	orch := pipeline.NewOrchestrator(registry, launcher)
//	op, err := orch.StartPipeline(ctx, "review", "my-workspace", []pipeline.Phase{
//	    pipeline.GroupPhase{Children: []pipeline.GroupChild{
//	        {Label: "api", Prompt: "Review the api repo"},
//	        {Label: "web", Prompt: "Review the web repo"},
//	    }},
//	    pipeline.FunctionPhase{Label: "Collect", Fn: collect},
//	})
//
// Every event of a task is re-tagged with the operation ID, the child label
// and the phase before it reaches the operation's bus. The operation ends with
// a complete event that carries no child label.
package pipeline
