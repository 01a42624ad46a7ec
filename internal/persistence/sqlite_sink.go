package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// SQLiteSink is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteSink struct {
	db *sql.DB
}

// Ensure SQLiteSink implements Store.
var _ Store = (*SQLiteSink)(nil)

// NewSQLiteSink initializes the required schema in the given database and
// returns a new SQLiteSink.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_name TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			input BLOB,
			output BLOB,
			captured_output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_execution_logs_run ON execution_logs(run_id);`,
	)
	return err
}

func (s *SQLiteSink) Append(ctx context.Context, log api.ExecutionLog) error {
	input, err := EncodeState(log.Input)
	if err != nil {
		return fmt.Errorf("encode input snapshot: %w", err)
	}

	output, err := EncodeState(log.Output)
	if err != nil {
		return fmt.Errorf("encode output snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_logs (run_id, step_name, started_at, ended_at, input, output, captured_output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.RunID,
		log.StepName,
		log.StartedAt.UTC().Format(time.RFC3339Nano),
		log.EndedAt.UTC().Format(time.RFC3339Nano),
		input,
		output,
		log.CapturedOutput,
		log.Err,
	)
	return err
}

func (s *SQLiteSink) ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step_name, started_at, ended_at, input, output, captured_output, error
		FROM execution_logs
		WHERE run_id = ?
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
			started, ended      string
			inputRaw, outputRaw []byte
		)
		if err := rows.Scan(&rec.RunID, &rec.StepName, &started, &ended, &inputRaw, &outputRaw, &rec.CapturedOutput, &rec.Err); err != nil {
			return nil, err
		}

		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		if rec.Input, err = DecodeState(inputRaw); err != nil {
			return nil, fmt.Errorf("decode input snapshot: %w", err)
		}
		if rec.Output, err = DecodeState(outputRaw); err != nil {
			return nil, fmt.Errorf("decode output snapshot: %w", err)
		}
		logs = append(logs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrNoLogs
	}
	return logs, nil
}

func (s *SQLiteSink) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
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
