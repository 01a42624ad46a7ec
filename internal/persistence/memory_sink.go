package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/grafo/pkg/api"
)

// MemorySink is a goroutine-safe, in-memory Store backed by maps. It is the
// engine's default sink and the workhorse for tests.
type MemorySink struct {
	mu    sync.RWMutex
	byRun map[string][]api.ExecutionLog
	order []string
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		byRun: make(map[string][]api.ExecutionLog),
	}
}

// Ensure MemorySink implements the interface.
var _ Store = (*MemorySink)(nil)

func (s *MemorySink) Append(ctx context.Context, log api.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byRun[log.RunID]; !ok {
		s.order = append(s.order, log.RunID)
	}
	s.byRun[log.RunID] = append(s.byRun[log.RunID], log)
	return nil
}

func (s *MemorySink) ListByRun(ctx context.Context, runID string) ([]api.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs, ok := s.byRun[runID]
	if !ok {
		return nil, ErrNoLogs
	}

	out := make([]api.ExecutionLog, len(logs))
	copy(out, logs)
	return out, nil
}

func (s *MemorySink) Runs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Len returns the total number of logs across all runs.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, logs := range s.byRun {
		n += len(logs)
	}
	return n
}
