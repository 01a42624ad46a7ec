package api

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	runIDKey
)

// ContextWithLogger returns a context carrying the given logger. The engine
// installs a per-invocation logger before calling a step; everything written
// through it ends up in the step's ExecutionLog.CapturedOutput as well as in
// the engine's own log output.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger carried by the context, or
// slog.Default() when none is set. Steps should use this instead of printing
// to stdout so their output is captured per invocation.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithRunID returns a context carrying the run identifier.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier carried by the context, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
