package operation

import "time"

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// PhaseStatus is the lifecycle state of a phase.
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// ChildStatus is the lifecycle state of a child task.
type ChildStatus string

const (
	ChildRunning   ChildStatus = "running"
	ChildCompleted ChildStatus = "completed"
	ChildFailed    ChildStatus = "failed"
)

// PhaseInfo records one phase of an operation.
type PhaseInfo struct {
	Index  int         `json:"index"`
	Label  string      `json:"label"`
	Status PhaseStatus `json:"status"`
}

// ChildInfo records one child task of an operation.
type ChildInfo struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	Status ChildStatus `json:"status"`
}

// Operation is a snapshot of one pipeline run.
type Operation struct {
	ID          string      `json:"id"`
	Type        string      `json:"type"`
	Workspace   string      `json:"workspace"`
	Status      Status      `json:"status"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Phases      []PhaseInfo `json:"phases,omitempty"`
	Children    []ChildInfo `json:"children,omitempty"`
}

// clone returns a deep copy.
func (o *Operation) clone() Operation {
	c := *o
	c.Phases = append([]PhaseInfo(nil), o.Phases...)
	c.Children = append([]ChildInfo(nil), o.Children...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Child returns the child with the given ID.
func (o Operation) Child(id string) (ChildInfo, bool) {
	for _, c := range o.Children {
		if c.ID == id {
			return c, true
		}
	}
	return ChildInfo{}, false
}
