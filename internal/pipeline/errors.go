package pipeline

import "errors"

var (
	// ErrInvalidPhase is returned when a phase cannot be run.
	ErrInvalidPhase = errors.New("pipeline: invalid phase")
	// ErrShuttingDown is returned by StartPipeline after Shutdown.
	ErrShuttingDown = errors.New("pipeline: orchestrator is shutting down")
)
