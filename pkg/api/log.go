package api

import (
	"context"
	"time"
)

// ExecutionLog is the durable record of one step invocation. The engine
// emits exactly one per invocation, success or failure, before the outcome
// propagates anywhere else.
type ExecutionLog struct {
	StepName string
	RunID    string

	StartedAt time.Time
	EndedAt   time.Time

	// Input is a snapshot of the state the step was invoked with.
	Input *State

	// Output is a snapshot of the state the step returned, or nil when the
	// step failed.
	Output *State

	// CapturedOutput holds everything the step wrote through its
	// per-invocation logger (LoggerFromContext).
	CapturedOutput string

	// Err is the step's error message, or "" on success.
	Err string
}

// Failed reports whether the invocation ended in an error.
func (l ExecutionLog) Failed() bool {
	return l.Err != ""
}

// Duration returns the wall-clock time the invocation took.
func (l ExecutionLog) Duration() time.Duration {
	return l.EndedAt.Sub(l.StartedAt)
}

// LogSink receives execution logs. Implementations must accept concurrent
// appends; parallel branches complete and log independently. Append should
// return quickly — slow sinks should buffer internally.
//
// An Append error never aborts the run: the engine logs it and moves on.
type LogSink interface {
	Append(ctx context.Context, log ExecutionLog) error
}

// SinkFunc adapts a function to the LogSink interface.
type SinkFunc func(ctx context.Context, log ExecutionLog) error

func (f SinkFunc) Append(ctx context.Context, log ExecutionLog) error {
	return f(ctx, log)
}
