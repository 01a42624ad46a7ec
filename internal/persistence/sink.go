package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/grafo/pkg/api"
)

// ErrNoLogs is returned by ListByRun when a run has no recorded logs.
var ErrNoLogs = errors.New("no logs recorded for run")

// Store is a LogSink whose records can be read back. The engine only ever
// appends; reading is for callers inspecting a finished run (the CLI's
// `logs` command, tests, debugging).
type Store interface {
	api.LogSink

	// ListByRun returns all logs of a run in append order.
	ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error)

	// Runs returns the recorded run IDs in first-append order.
	Runs(ctx context.Context) ([]string, error)
}
