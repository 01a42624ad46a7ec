package persistence

import (
	"time"

	corep "github.com/petrijr/grafo/internal/persistence"
)

func (p *PostgresSinkTestSuite) TestAppendAndListByRun() {
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-a", "market_data", false)))
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-a", "technical_analyst", false)))
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-b", "market_data", true)))

	logs, err := p.sink.ListByRun(p.ctx, "run-a")
	p.NoError(err)
	p.Len(logs, 2)
	p.Equal("market_data", logs[0].StepName, "logs should come back in append order")
	p.Equal("technical_analyst", logs[1].StepName)
	p.False(logs[0].Failed())

	ticker, ok := logs[0].Input.StringValue("ticker")
	p.True(ok, "input snapshot should survive the round trip")
	p.Equal("600519", ticker)

	signal, ok := logs[0].Output.StringValue("signal")
	p.True(ok, "output snapshot should survive the round trip")
	p.Equal("bullish", signal)
}

func (p *PostgresSinkTestSuite) TestFailedInvocationKeepsErrorAndDropsOutput() {
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-f", "market_data", true)))

	logs, err := p.sink.ListByRun(p.ctx, "run-f")
	p.NoError(err)
	p.Len(logs, 1)
	p.True(logs[0].Failed())
	p.Equal("market data unavailable", logs[0].Err)
	p.Nil(logs[0].Output)
}

func (p *PostgresSinkTestSuite) TestListByRunWithoutLogs() {
	_, err := p.sink.ListByRun(p.ctx, "missing")
	p.ErrorIs(err, corep.ErrNoLogs)
}

func (p *PostgresSinkTestSuite) TestRunsOrderedByFirstAppend() {
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-1", "a", false)))
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-2", "a", false)))
	// A later append to run-1 must not move it behind run-2.
	p.NoError(p.sink.Append(p.ctx, sampleLog("run-1", "b", false)))

	runs, err := p.sink.Runs(p.ctx)
	p.NoError(err)
	p.Equal([]string{"run-1", "run-2"}, runs)
}

func (p *PostgresSinkTestSuite) TestTimestampsSurviveRoundTrip() {
	rec := sampleLog("run-t", "a", false)
	p.NoError(p.sink.Append(p.ctx, rec))

	logs, err := p.sink.ListByRun(p.ctx, "run-t")
	p.NoError(err)
	p.True(rec.StartedAt.Equal(logs[0].StartedAt))
	p.Equal(time.Second, logs[0].Duration())
}

func (p *PostgresSinkTestSuite) TestSchemaInitIsIdempotent() {
	sink, err := NewPostgresSink(p.db)
	p.NoError(err, "re-running schema init against an existing table should succeed")
	p.NotNil(sink)
}
