package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

// engineImpl is an in-process engine: registries for steps and graphs, a
// log sink for the audit trail, and a coordinator-plus-workers scheduler
// per run.
type engineImpl struct {
	steps  *stepRegistry
	graphs *graphRegistry

	ins      *instrumenter
	observer api.Observer
	logger   *slog.Logger
	workers  int

	mu    sync.Mutex
	runs  map[string]*api.RunReport
	order []string
}

// Config describes how to construct an engineImpl.
// Only used inside this package; external callers use the helper functions.
type Config struct {
	// Sink receives one ExecutionLog per step invocation. Defaults to an
	// in-memory store.
	Sink api.LogSink

	// Observer is notified of run and step lifecycle events. Defaults to
	// the no-op observer.
	Observer api.Observer

	// Logger is the engine's structured logger and the base every step
	// logger tees into. Defaults to slog.Default().
	Logger *slog.Logger

	// Workers bounds the number of steps executing concurrently within a
	// run. Zero or negative means one worker per CPU.
	Workers int
}

func NewInMemoryEngine() api.Engine {
	return NewEngineWithConfig(Config{})
}

func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	sink, err := persistence.NewSQLiteSink(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{Sink: sink}), nil
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	sink := cfg.Sink
	if sink == nil {
		sink = persistence.NewMemorySink()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engineImpl{
		steps:    newStepRegistry(),
		graphs:   newGraphRegistry(),
		ins:      &instrumenter{sink: sink, observer: obs, logger: logger},
		observer: obs,
		logger:   logger,
		workers:  cfg.Workers,
		runs:     make(map[string]*api.RunReport),
	}
}

func (e *engineImpl) RegisterStep(def api.StepDefinition) error {
	return e.steps.Register(def)
}

func (e *engineImpl) RegisterGraph(def api.GraphDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	for _, node := range def.Nodes {
		if _, err := e.steps.Lookup(node); err != nil {
			return fmt.Errorf("graph %s: %w", def.Name, err)
		}
	}
	return e.graphs.Register(def)
}

func (e *engineImpl) Run(ctx context.Context, graph string, initial *api.State) (*api.RunReport, error) {
	return e.RunWithID(ctx, graph, uuid.NewString(), initial)
}

func (e *engineImpl) RunWithID(ctx context.Context, graph, runID string, initial *api.State) (*api.RunReport, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	def, err := e.graphs.Get(graph)
	if err != nil {
		return nil, err
	}

	steps := make(map[string]api.StepDefinition, len(def.Nodes))
	for _, node := range def.Nodes {
		sd, err := e.steps.Lookup(node)
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", def.Name, err)
		}
		steps[node] = sd
	}

	init := initial.Clone()
	init.SetMeta(api.MetaRunID, runID)

	started := time.Now()
	stub := &api.RunReport{
		ID:        runID,
		Graph:     def.Name,
		Status:    api.StatusRunning,
		StartedAt: started,
	}
	if err := e.trackRun(stub); err != nil {
		return nil, err
	}

	e.observer.OnRunStart(ctx, runID, def.Name)
	e.logger.Info("run started",
		slog.String("run_id", runID),
		slog.String("graph", def.Name),
	)

	exec := newExecution(ctx, runID, def, steps, e.ins, e.observer, e.logger, e.workers)
	final, nodes, runErr := exec.run(init)

	report := &api.RunReport{
		ID:        runID,
		Graph:     def.Name,
		StartedAt: started,
		EndedAt:   time.Now(),
		Final:     final,
		Nodes:     nodes,
	}
	duration := report.EndedAt.Sub(report.StartedAt)

	if runErr != nil {
		report.Status = api.StatusFailed
		report.Err = runErr
		e.storeRun(report)
		e.observer.OnRunFailed(ctx, report, runErr, duration)
		e.logger.Error("run failed",
			slog.String("run_id", runID),
			slog.String("graph", def.Name),
			slog.Duration("duration", duration),
			slog.Any("error", runErr),
		)
		return report, runErr
	}

	report.Status = api.StatusCompleted
	e.storeRun(report)
	e.observer.OnRunCompleted(ctx, report, duration)
	e.logger.Info("run completed",
		slog.String("run_id", runID),
		slog.String("graph", def.Name),
		slog.Duration("duration", duration),
	)
	return report, nil
}

func (e *engineImpl) GetRun(ctx context.Context, runID string) (*api.RunReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	report, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrRunNotFound, runID)
	}
	return report, nil
}

func (e *engineImpl) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.RunReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*api.RunReport
	for _, id := range e.order {
		report := e.runs[id]
		if opts.Graph != "" && report.Graph != opts.Graph {
			continue
		}
		if opts.Status != "" && report.Status != opts.Status {
			continue
		}
		out = append(out, report)
	}
	return out, nil
}

// trackRun records the RUNNING stub so GetRun sees in-flight runs. The
// finished report later replaces the stub wholesale; the stub itself is
// never mutated.
func (e *engineImpl) trackRun(stub *api.RunReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.runs[stub.ID]; exists {
		return fmt.Errorf("run already exists: %s", stub.ID)
	}
	e.runs[stub.ID] = stub
	e.order = append(e.order, stub.ID)
	return nil
}

func (e *engineImpl) storeRun(report *api.RunReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[report.ID] = report
}
