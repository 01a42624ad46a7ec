package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// instrumenter wraps step invocations so every one of them is observable
// without the step author doing anything. Its contract is the engine's core
// guarantee: exactly one ExecutionLog per invocation, success, failure or
// panic, appended to the sink before the outcome propagates.
type instrumenter struct {
	sink     api.LogSink
	observer api.Observer
	logger   *slog.Logger
}

// execute runs one step invocation. The caller hands over the dispatch
// state; execute snapshots it, injects the capture logger, invokes the
// function on a working copy, snapshots the result, and appends the log.
//
// A sink append failure is logged and otherwise ignored; it never fails the
// invocation.
func (ins *instrumenter) execute(ctx context.Context, def api.StepDefinition, runID string, state *api.State) (*api.State, error) {
	work := state.Clone()
	work.SetMeta(api.MetaCurrentStep, def.Name)
	input := work.Clone()

	var buf bytes.Buffer
	capture := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	stepLogger := slog.New(teeHandler{base: ins.logger.Handler(), capture: capture})

	stepCtx := api.ContextWithRunID(ctx, runID)
	stepCtx = api.ContextWithLogger(stepCtx, stepLogger)

	ins.observer.OnStepStart(stepCtx, runID, def.Name)

	rec := api.ExecutionLog{
		StepName:  def.Name,
		RunID:     runID,
		StartedAt: time.Now(),
		Input:     input,
	}

	out, err := invoke(stepCtx, def.Fn, work)

	rec.EndedAt = time.Now()
	rec.CapturedOutput = buf.String()
	if err != nil {
		rec.Err = err.Error()
		err = &api.StepExecutionError{Step: def.Name, RunID: runID, Err: err}
	} else {
		// run_id is engine-owned and immutable for the run; restore it in
		// case the step overwrote it.
		out.SetMeta(api.MetaRunID, runID)
		rec.Output = out.Clone()
	}

	if sinkErr := ins.sink.Append(ctx, rec); sinkErr != nil {
		ins.logger.Error("log sink append failed",
			slog.String("run_id", runID),
			slog.String("step", def.Name),
			slog.Any("error", sinkErr),
		)
	}

	ins.observer.OnStepCompleted(stepCtx, runID, def.Name, err, rec.EndedAt.Sub(rec.StartedAt))

	if err != nil {
		return nil, err
	}
	return out, nil
}

// invoke calls the step function, converting panics into errors so a
// misbehaving step cannot take down the run's worker.
func invoke(ctx context.Context, fn api.StepFunc, state *api.State) (out *api.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("step panicked: %v", r)
		}
	}()

	out, err = fn(ctx, state)
	if err != nil {
		return nil, err
	}
	if out == nil {
		// A step returning (nil, nil) passes its input through unchanged.
		out = state
	}
	return out, nil
}

// teeHandler forwards records to the engine's base handler and to the
// per-invocation capture buffer.
type teeHandler struct {
	base    slog.Handler
	capture slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level) || h.capture.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	if h.base.Enabled(ctx, rec.Level) {
		firstErr = h.base.Handle(ctx, rec.Clone())
	}
	if h.capture.Enabled(ctx, rec.Level) {
		if err := h.capture.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{
		base:    h.base.WithAttrs(attrs),
		capture: h.capture.WithAttrs(attrs),
	}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{
		base:    h.base.WithGroup(name),
		capture: h.capture.WithGroup(name),
	}
}
