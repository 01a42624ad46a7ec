package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	corep "github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

// RedisSink is a Store backed by Redis. It uses a simple key structure:
//
//	<prefix>log:<run>  => LIST of JSON-encoded execution logs, append order
//	<prefix>idx:runs   => ZSET of run IDs scored by first-append time
//
// Entries are JSON rather than a binary encoding so the audit trail stays
// inspectable with redis-cli, matching the core SQLite sink.
type RedisSink struct {
	client *redis.Client
	prefix string
}

var _ corep.Store = (*RedisSink)(nil)

// NewRedisSink creates a RedisSink.
// prefix is optional but recommended (e.g. "grafo:").
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "grafo:"
	}
	return &RedisSink{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisSink) keyRun(runID string) string {
	return r.prefix + "log:" + runID
}

func (r *RedisSink) keyRuns() string {
	return r.prefix + "idx:runs"
}

func (r *RedisSink) Append(ctx context.Context, log api.ExecutionLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode execution log: %w", err)
	}

	// The NX score keeps the run index ordered by each run's first append.
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.keyRun(log.RunID), data)
	pipe.ZAddNX(ctx, r.keyRuns(), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: log.RunID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisSink) ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error) {
	raw, err := r.client.LRange(ctx, r.keyRun(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, corep.ErrNoLogs
	}

	logs := make([]api.ExecutionLog, 0, len(raw))
	for _, item := range raw {
		var rec api.ExecutionLog
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode execution log: %w", err)
		}
		logs = append(logs, rec)
	}
	return logs, nil
}

func (r *RedisSink) Runs(ctx context.Context) ([]string, error) {
	return r.client.ZRange(ctx, r.keyRuns(), 0, -1).Result()
}
