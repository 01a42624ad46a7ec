package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

func sampleLog(runID, step string) api.ExecutionLog {
	in := api.NewState()
	in.SetValue("ticker", "600519")

	out := in.Clone()
	out.SetValue("signal", "bullish")

	return api.ExecutionLog{
		RunID:     runID,
		StepName:  step,
		StartedAt: time.Now().Add(-time.Second),
		EndedAt:   time.Now(),
		Input:     in,
		Output:    out,
	}
}

func TestMemorySink_AppendAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	if err := s.Append(ctx, sampleLog("r1", "market_data")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, sampleLog("r1", "technical")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, sampleLog("r2", "market_data")); err != nil {
		t.Fatalf("append: %v", err)
	}

	logs, err := s.ListByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 || logs[0].StepName != "market_data" || logs[1].StepName != "technical" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0] != "r1" || runs[1] != "r2" {
		t.Fatalf("unexpected run order: %v", runs)
	}

	if s.Len() != 3 {
		t.Fatalf("len: %d", s.Len())
	}
}

func TestMemorySink_UnknownRun(t *testing.T) {
	s := NewMemorySink()
	if _, err := s.ListByRun(context.Background(), "ghost"); !errors.Is(err, ErrNoLogs) {
		t.Fatalf("expected ErrNoLogs, got %v", err)
	}
}

func TestMemorySink_ListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()
	s.Append(ctx, sampleLog("r1", "a"))

	logs, _ := s.ListByRun(ctx, "r1")
	logs[0].StepName = "mutated"

	again, _ := s.ListByRun(ctx, "r1")
	if again[0].StepName != "a" {
		t.Fatalf("caller mutation reached the store")
	}
}

func TestMemorySink_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Append(ctx, sampleLog("r1", "step")); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	logs, err := s.ListByRun(ctx, "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 32 {
		t.Fatalf("lost appends: %d of 32", len(logs))
	}
}
