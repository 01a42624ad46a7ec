package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay run execution. Step hooks may be called
// from concurrent worker goroutines.
type Observer interface {
	// OnRunStart is called once when a run begins, before the entry node
	// is dispatched.
	OnRunStart(ctx context.Context, runID, graph string)

	// OnRunCompleted is called when a run finishes with every executed node
	// completed.
	OnRunCompleted(ctx context.Context, report *RunReport, duration time.Duration)

	// OnRunFailed is called when a run aborts because a node failed or a
	// router misbehaved.
	OnRunFailed(ctx context.Context, report *RunReport, err error, duration time.Duration)

	// OnStepStart is called before invoking a step function.
	OnStepStart(ctx context.Context, runID, stepName string)

	// OnStepCompleted is called after a step function returns, for both
	// successes and failures (err != nil).
	OnStepCompleted(ctx context.Context, runID, stepName string, err error, duration time.Duration)

	// OnMergeConflict is called when parallel predecessors of a join wrote
	// the same Data key and the engine applied the declaration-order
	// tie-break. Concurrent same-key writes are a configuration smell worth
	// surfacing, not an error.
	OnMergeConflict(ctx context.Context, runID, node, key string)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, runID, graph string) {}
func (NoopObserver) OnRunCompleted(ctx context.Context, report *RunReport, d time.Duration) {
}
func (NoopObserver) OnRunFailed(ctx context.Context, report *RunReport, err error, d time.Duration) {
}
func (NoopObserver) OnStepStart(ctx context.Context, runID, stepName string) {}
func (NoopObserver) OnStepCompleted(ctx context.Context, runID, stepName string, err error, d time.Duration) {
}
func (NoopObserver) OnMergeConflict(ctx context.Context, runID, node, key string) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, runID, graph string) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, runID, graph)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, report *RunReport, d time.Duration) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, report, d)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, report *RunReport, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, report, err, d)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, runID, stepName string) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, runID, stepName)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, runID, stepName string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, runID, stepName, err, d)
	}
}

func (c *CompositeObserver) OnMergeConflict(ctx context.Context, runID, node, key string) {
	for _, o := range c.observers {
		o.OnMergeConflict(ctx, runID, node, key)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs run / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, runID, graph string) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("graph", graph),
		slog.String("run_id", runID),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, report *RunReport, d time.Duration) {
	o.Logger.InfoContext(ctx, "run_completed",
		slog.String("graph", report.Graph),
		slog.String("run_id", report.ID),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, report *RunReport, err error, d time.Duration) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.String("graph", report.Graph),
		slog.String("run_id", report.ID),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, runID, stepName string) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("run_id", runID),
		slog.String("step", stepName),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, runID, stepName string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("run_id", runID),
		slog.String("step", stepName),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnMergeConflict(ctx context.Context, runID, node, key string) {
	o.Logger.WarnContext(ctx, "merge_conflict",
		slog.String("run_id", runID),
		slog.String("node", node),
		slog.String("key", key),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsCompleted     atomic.Int64
	runsFailed        atomic.Int64
	stepsCompleted    atomic.Int64
	mergeConflicts    atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	ActiveRuns    int64

	StepsCompleted  int64
	MergeConflicts  int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, runID, graph string) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, report *RunReport, d time.Duration) {
	m.runsCompleted.Add(1)
}

func (m *BasicMetrics) OnRunFailed(ctx context.Context, report *RunReport, err error, d time.Duration) {
	m.runsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, runID, stepName string, err error, d time.Duration) {
	// Only count successful steps for average duration.
	if err == nil {
		m.stepsCompleted.Add(1)
		m.totalStepDuration.Add(d.Nanoseconds())
	}
}

func (m *BasicMetrics) OnMergeConflict(ctx context.Context, runID, node, key string) {
	m.mergeConflicts.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	failed := m.runsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		RunsStarted:     started,
		RunsCompleted:   completed,
		RunsFailed:      failed,
		ActiveRuns:      started - completed - failed,
		StepsCompleted:  steps,
		MergeConflicts:  m.mergeConflicts.Load(),
		AvgStepDuration: avg,
	}
}
