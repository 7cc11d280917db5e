package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/agentops/internal/agent"
)

// Kind names a phase variant.
type Kind string

const (
	KindSingle   Kind = "single"
	KindGroup    Kind = "group"
	KindFunction Kind = "function"
)

// Phase is a step of a pipeline. The set of implementations is closed:
// SinglePhase, GroupPhase and FunctionPhase.
type Phase interface {
	Kind() Kind
	isPhase()
}

// SinglePhase runs one agent task.
type SinglePhase struct {
	Label   string
	Prompt  string
	Options agent.Options
}

// GroupChild is one task of a group.
type GroupChild struct {
	Label   string        `json:"label" yaml:"label"`
	Prompt  string        `json:"prompt" yaml:"prompt"`
	Options agent.Options `json:"options" yaml:"options"`
}

// GroupPhase runs its children concurrently.
type GroupPhase struct {
	Children []GroupChild
}

// PhaseFunc is the body of a function phase. It reports phase success;
// a non-nil error fails the phase.
type PhaseFunc func(ctx context.Context, pc *PhaseContext) (bool, error)

// FunctionPhase runs custom code.
type FunctionPhase struct {
	Label string
	Fn    PhaseFunc
}

func (SinglePhase) Kind() Kind   { return KindSingle }
func (GroupPhase) Kind() Kind    { return KindGroup }
func (FunctionPhase) Kind() Kind { return KindFunction }

func (SinglePhase) isPhase()   {}
func (GroupPhase) isPhase()    {}
func (FunctionPhase) isPhase() {}

// PhaseLabel returns the display label of the phase at index.
func PhaseLabel(p Phase, index int) string {
	switch p := p.(type) {
	case SinglePhase:
		return p.Label
	case FunctionPhase:
		return p.Label
	case GroupPhase:
		return fmt.Sprintf("Phase %d: %s", index+1, strings.Join(childLabels(p.Children), ", "))
	}
	return ""
}

func childLabels(children []GroupChild) []string {
	labels := make([]string, len(children))
	for i, c := range children {
		labels[i] = c.Label
	}
	return labels
}

func validatePhase(p Phase, index int) error {
	switch p := p.(type) {
	case SinglePhase:
		if p.Prompt == "" {
			return fmt.Errorf("%w: phase %d has an empty prompt", ErrInvalidPhase, index+1)
		}
	case GroupPhase:
		for j, c := range p.Children {
			if c.Prompt == "" {
				return fmt.Errorf("%w: phase %d child %d has an empty prompt", ErrInvalidPhase, index+1, j+1)
			}
		}
	case FunctionPhase:
		if p.Fn == nil {
			return fmt.Errorf("%w: phase %d has no function", ErrInvalidPhase, index+1)
		}
	default:
		return fmt.Errorf("%w: phase %d is nil or of unknown kind", ErrInvalidPhase, index+1)
	}
	return nil
}

// Action is a policy decision taken after a phase completes.
type Action int

const (
	// Continue proceeds normally: the next phase runs on success and the
	// pipeline halts on failure.
	Continue Action = iota
	// Skip marks the next phase skipped and moves past it.
	Skip
	// Abort halts the pipeline and fails the operation.
	Abort
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return "continue"
	}
}

// Policy decides what happens after each phase.
type Policy interface {
	OnPhaseComplete(index int, phase Phase, success bool) Action
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(index int, phase Phase, success bool) Action

// OnPhaseComplete calls f.
func (f PolicyFunc) OnPhaseComplete(index int, phase Phase, success bool) Action {
	return f(index, phase, success)
}
