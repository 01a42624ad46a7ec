package grafo

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/petrijr/grafo/internal/engine"
	"github.com/petrijr/grafo/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	State                = api.State
	Message              = api.Message
	StepDefinition       = api.StepDefinition
	StepFunc             = api.StepFunc
	RouterFunc           = api.RouterFunc
	GraphDefinition      = api.GraphDefinition
	Edge                 = api.Edge
	GraphSpec            = api.GraphSpec
	RunReport            = api.RunReport
	RunListOptions       = api.RunListOptions
	Status               = api.Status
	NodeState            = api.NodeState
	ExecutionLog         = api.ExecutionLog
	LogSink              = api.LogSink
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common constructors and helpers.

var (
	NewState             = api.NewState
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
	LoadGraphSpec        = api.LoadGraphSpec
	ParseGraphSpec       = api.ParseGraphSpec
)

// Re-export status and node state values for convenience.

const (
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed

	NodePending   = api.NodePending
	NodeReady     = api.NodeReady
	NodeRunning   = api.NodeRunning
	NodeCompleted = api.NodeCompleted
	NodeFailed    = api.NodeFailed

	// End is the pseudo-node a router returns to terminate its path.
	End = api.End
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// Options tunes an Engine beyond the defaults. The zero value is valid:
// an in-memory log sink, no observer, slog.Default() and one worker per CPU.
type Options struct {
	// Sink receives one ExecutionLog per step invocation.
	Sink LogSink

	// Observer is notified of run and step lifecycle events.
	Observer Observer

	// Logger is the engine's structured logger and the base every step
	// logger tees into.
	Logger *slog.Logger

	// Workers bounds the number of steps executing concurrently in a run.
	Workers int
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.NewEngineWithConfig(engine.Config{Observer: obs})
}

// NewSQLiteEngine returns an Engine that appends execution logs to a SQLite
// database. Graph definitions and run reports are kept in-memory.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewEngineWithOptions returns an Engine configured per opts.
func NewEngineWithOptions(opts Options) Engine {
	return engine.NewEngineWithConfig(engine.Config{
		Sink:     opts.Sink,
		Observer: opts.Observer,
		Logger:   opts.Logger,
		Workers:  opts.Workers,
	})
}

// Convenience helpers that just forward to the underlying Engine.

// Run executes a registered graph synchronously with a minted run ID.
func Run(ctx context.Context, eng Engine, graph string, initial *State) (*RunReport, error) {
	return eng.Run(ctx, graph, initial)
}

// RunWithID is Run with a caller-supplied run ID.
func RunWithID(ctx context.Context, eng Engine, graph, runID string, initial *State) (*RunReport, error) {
	return eng.RunWithID(ctx, graph, runID, initial)
}

// GetRun fetches a run report by ID.
func GetRun(ctx context.Context, eng Engine, runID string) (*RunReport, error) {
	return eng.GetRun(ctx, runID)
}

// ListRuns lists run reports according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*RunReport, error) {
	return eng.ListRuns(ctx, opts)
}
