package operation

import "errors"

var (
	// ErrNotFound is returned for an unknown operation ID.
	ErrNotFound = errors.New("operation not found")
	// ErrNotRunning is returned when an operation has already finished.
	ErrNotRunning = errors.New("operation is not running")
	// ErrNoPendingQuestion is returned when no live task holds the question.
	ErrNoPendingQuestion = errors.New("no pending question with that id")
	// ErrDuplicate is returned when registering an ID twice.
	ErrDuplicate = errors.New("operation already registered")
)
