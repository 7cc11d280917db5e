package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindOutput   Kind = "output"
	KindError    Kind = "error"
	KindComplete Kind = "complete"
	KindStatus   Kind = "status"
)

// PhaseUpdatePrefix marks status events that describe a phase transition.
const PhaseUpdatePrefix = "__phaseUpdate:"

// Event is a single entry in an operation's stream.
type Event struct {
	Type        Kind   `json:"type"`
	OperationID string `json:"operationId"`
	Data        string `json:"data"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp  int64  `json:"timestamp"`
	ChildLabel string `json:"childLabel,omitempty"`
	PhaseIndex *int   `json:"phaseIndex,omitempty"`
	PhaseLabel string `json:"phaseLabel,omitempty"`
}

// New returns an event stamped with the current time.
func New(operationID string, kind Kind, data string) Event {
	return Event{
		Type:        kind,
		OperationID: operationID,
		Data:        data,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// Status returns a status event.
func Status(operationID, msg string) Event {
	return New(operationID, KindStatus, msg)
}

// Output returns an output event carrying a raw agent message.
func Output(operationID, raw string) Event {
	return New(operationID, KindOutput, raw)
}

// Error returns an error event.
func Error(operationID, msg string) Event {
	return New(operationID, KindError, msg)
}

// Complete returns a terminal event carrying exitCode.
func Complete(operationID string, exitCode int) Event {
	return New(operationID, KindComplete, CompleteData(exitCode))
}

// CompleteData encodes the payload of a complete event.
func CompleteData(exitCode int) string {
	return fmt.Sprintf(`{"exitCode":%d}`, exitCode)
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// WithChild returns a copy of e tagged with a child label.
func (e Event) WithChild(label string) Event {
	e.ChildLabel = label
	return e
}

// WithPhase returns a copy of e tagged with a phase.
func (e Event) WithPhase(index int, label string) Event {
	i := index
	e.PhaseIndex = &i
	e.PhaseLabel = label
	return e
}

// Retarget returns a copy of e attributed to another operation.
func (e Event) Retarget(operationID string) Event {
	e.OperationID = operationID
	if e.PhaseIndex != nil {
		i := *e.PhaseIndex
		e.PhaseIndex = &i
	}
	return e
}

// IsPipelineComplete reports whether e ends the whole operation.
func (e Event) IsPipelineComplete() bool {
	return e.Type == KindComplete && e.ChildLabel == ""
}

// ExitCode decodes the exit code of a complete event. It returns false for
// any other event or a malformed payload.
func (e Event) ExitCode() (int, bool) {
	if e.Type != KindComplete {
		return 0, false
	}
	var payload struct {
		ExitCode *int `json:"exitCode"`
	}
	if err := json.Unmarshal([]byte(e.Data), &payload); err != nil || payload.ExitCode == nil {
		return 0, false
	}
	return *payload.ExitCode, true
}

// PhaseUpdate is the payload of a phase lifecycle status event.
type PhaseUpdate struct {
	PhaseIndex  int    `json:"phaseIndex"`
	PhaseLabel  string `json:"phaseLabel"`
	PhaseStatus string `json:"phaseStatus"`
}

// PhaseUpdateData encodes a phase transition as a status payload.
func PhaseUpdateData(u PhaseUpdate) string {
	b, _ := json.Marshal(u)
	return PhaseUpdatePrefix + string(b)
}

// ParsePhaseUpdate decodes a phase transition from a status event.
func (e Event) ParsePhaseUpdate() (PhaseUpdate, bool) {
	var u PhaseUpdate
	if e.Type != KindStatus {
		return u, false
	}
	body, ok := strings.CutPrefix(e.Data, PhaseUpdatePrefix)
	if !ok {
		return u, false
	}
	if err := json.Unmarshal([]byte(body), &u); err != nil {
		return u, false
	}
	return u, true
}
