package persistence

import (
	"context"
	"database/sql"
	"fmt"

	corep "github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

// PostgresSink is a Store backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib" or "github.com/lib/pq").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresSink struct {
	db *sql.DB
}

// Ensure PostgresSink implements Store.
var _ corep.Store = (*PostgresSink)(nil)

// NewPostgresSink initializes the required schema in the given database and
// returns a new PostgresSink.
func NewPostgresSink(db *sql.DB) (*PostgresSink, error) {
	s := &PostgresSink{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresSink) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_logs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			step_name TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL,
			input BYTEA,
			output BYTEA,
			captured_output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_run ON execution_logs(run_id);`,
	)
	return err
}

func (p *PostgresSink) Append(ctx context.Context, log api.ExecutionLog) error {
	input, err := corep.EncodeState(log.Input)
	if err != nil {
		return fmt.Errorf("encode input snapshot: %w", err)
	}

	output, err := corep.EncodeState(log.Output)
	if err != nil {
		return fmt.Errorf("encode output snapshot: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO execution_logs (run_id, step_name, started_at, ended_at, input, output, captured_output, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		log.RunID,
		log.StepName,
		log.StartedAt.UTC(),
		log.EndedAt.UTC(),
		input,
		output,
		log.CapturedOutput,
		log.Err,
	)
	return err
}

func (p *PostgresSink) ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT run_id, step_name, started_at, ended_at, input, output, captured_output, error
		FROM execution_logs
		WHERE run_id = $1
		ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []api.ExecutionLog
	for rows.Next() {
		var (
			rec                 api.ExecutionLog
			inputRaw, outputRaw []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.StepName, &rec.StartedAt, &rec.EndedAt, &inputRaw, &outputRaw, &rec.CapturedOutput, &rec.Err); err != nil {
			return nil, err
		}

		if rec.Input, err = corep.DecodeState(inputRaw); err != nil {
			return nil, fmt.Errorf("decode input snapshot: %w", err)
		}
		if rec.Output, err = corep.DecodeState(outputRaw); err != nil {
			return nil, fmt.Errorf("decode output snapshot: %w", err)
		}
		logs = append(logs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, corep.ErrNoLogs
	}
	return logs, nil
}

func (p *PostgresSink) Runs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT run_id
		FROM execution_logs
		GROUP BY run_id
		ORDER BY MIN(id)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}
