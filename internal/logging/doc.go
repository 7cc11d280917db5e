// Package logging provides structured JSON logging for agentops.
//
// It wraps log/slog with a small [Logger] type that carries persistent
// attributes. Child loggers add the operation, child, or phase they belong to:
//
//	logger, err := logging.NewLogger("/var/log/agentops", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	opLog := logger.WithOperation("op-123").WithPhase(0, "Build")
//	opLog.Info("phase started")
//
// The level can be changed at runtime with [Logger.SetLevel]; every child
// logger shares the level of the logger it was derived from.
//
// Tests use [NopLogger].
package logging
