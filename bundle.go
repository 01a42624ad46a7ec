package grafo

import (
	"context"
	"database/sql"

	"github.com/petrijr/grafo/internal/engine"
	"github.com/petrijr/grafo/internal/persistence"
)

// LogStore is a LogSink whose entries can be read back, per run or across
// runs. The in-memory and SQLite sinks both satisfy it.
type LogStore interface {
	LogSink

	// ListByRun returns a run's logs in append order.
	ListByRun(ctx context.Context, runID string) ([]ExecutionLog, error)

	// Runs returns the distinct run IDs with at least one log.
	Runs(ctx context.Context) ([]string, error)
}

// AuditBundle wires together an Engine and the durable store its execution
// logs land in, so callers can run graphs and read the audit trail through
// one value.
type AuditBundle struct {
	Engine Engine
	Logs   LogStore
}

// NewSQLiteAudit constructs an Engine whose execution logs persist in the
// provided *sql.DB, and returns it together with a reader over those logs.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:grafo.db?_journal=WAL")
//	audit, err := grafo.NewSQLiteAudit(db)
//	// register steps and graphs on audit.Engine, run them
//	logs, err := audit.Logs.ListByRun(ctx, report.ID)
func NewSQLiteAudit(db *sql.DB) (*AuditBundle, error) {
	sink, err := persistence.NewSQLiteSink(db)
	if err != nil {
		return nil, err
	}
	eng := engine.NewEngineWithConfig(engine.Config{Sink: sink})
	return &AuditBundle{
		Engine: eng,
		Logs:   sink,
	}, nil
}

// NewMemoryAudit is NewSQLiteAudit's in-memory counterpart, for tests and
// short-lived processes.
func NewMemoryAudit() *AuditBundle {
	sink := persistence.NewMemorySink()
	eng := engine.NewEngineWithConfig(engine.Config{Sink: sink})
	return &AuditBundle{
		Engine: eng,
		Logs:   sink,
	}
}
