package engine

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine on a MemorySink and a discarded logger
// unless the test configured its own.
func newTestEngine(t *testing.T, cfg Config) (api.Engine, *persistence.MemorySink) {
	t.Helper()
	sink, _ := cfg.Sink.(*persistence.MemorySink)
	if sink == nil {
		sink = persistence.NewMemorySink()
		cfg.Sink = sink
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return NewEngineWithConfig(cfg), sink
}

// setKey returns a step that writes one Data key and appends one message.
func setKey(name, key string, value any) api.StepDefinition {
	return api.StepDefinition{
		Name: name,
		Fn: func(ctx context.Context, state *api.State) (*api.State, error) {
			state.SetValue(key, value)
			state.AddMessage(api.Message{Role: "assistant", Name: name, Content: key})
			return state, nil
		},
	}
}

// passThrough returns a step that leaves the state untouched.
func passThrough(name string) api.StepDefinition {
	return api.StepDefinition{
		Name: name,
		Fn: func(ctx context.Context, state *api.State) (*api.State, error) {
			return state, nil
		},
	}
}

func registerAll(t *testing.T, eng api.Engine, defs ...api.StepDefinition) {
	t.Helper()
	for _, def := range defs {
		if err := eng.RegisterStep(def); err != nil {
			t.Fatalf("RegisterStep(%s) failed: %v", def.Name, err)
		}
	}
}

func mustRegisterGraph(t *testing.T, eng api.Engine, def api.GraphDefinition) {
	t.Helper()
	if err := eng.RegisterGraph(def); err != nil {
		t.Fatalf("RegisterGraph(%s) failed: %v", def.Name, err)
	}
}

func logsFor(t *testing.T, sink *persistence.MemorySink, runID string) []api.ExecutionLog {
	t.Helper()
	logs, err := sink.ListByRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("ListByRun(%s) failed: %v", runID, err)
	}
	return logs
}

// stepTrace is an Observer that records, for every step start, which steps
// had already completed at that moment. Fan-in gating assertions are built
// on those snapshots.
type stepTrace struct {
	api.NoopObserver

	mu        sync.Mutex
	completed map[string]bool
	startSnap map[string][]string
	conflicts []string

	runsStarted   int
	runsCompleted int
	runsFailed    int
}

func newStepTrace() *stepTrace {
	return &stepTrace{
		completed: make(map[string]bool),
		startSnap: make(map[string][]string),
	}
}

func (tr *stepTrace) OnRunStart(ctx context.Context, runID, graph string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.runsStarted++
}

func (tr *stepTrace) OnRunCompleted(ctx context.Context, report *api.RunReport, d time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.runsCompleted++
}

func (tr *stepTrace) OnRunFailed(ctx context.Context, report *api.RunReport, err error, d time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.runsFailed++
}

func (tr *stepTrace) OnStepStart(ctx context.Context, runID, stepName string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	snap := make([]string, 0, len(tr.completed))
	for name := range tr.completed {
		snap = append(snap, name)
	}
	sort.Strings(snap)
	tr.startSnap[stepName] = snap
}

func (tr *stepTrace) OnStepCompleted(ctx context.Context, runID, stepName string, err error, d time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if err == nil {
		tr.completed[stepName] = true
	}
}

func (tr *stepTrace) OnMergeConflict(ctx context.Context, runID, node, key string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.conflicts = append(tr.conflicts, node+"/"+key)
}

// completedBefore reports whether every step in want had completed when
// stepName started.
func (tr *stepTrace) completedBefore(stepName string, want ...string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	snap, ok := tr.startSnap[stepName]
	if !ok {
		return false
	}
	seen := make(map[string]bool, len(snap))
	for _, name := range snap {
		seen[name] = true
	}
	for _, name := range want {
		if !seen[name] {
			return false
		}
	}
	return true
}

func (tr *stepTrace) started(stepName string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.startSnap[stepName]
	return ok
}

func (tr *stepTrace) conflictList() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]string, len(tr.conflicts))
	copy(out, tr.conflicts)
	return out
}
