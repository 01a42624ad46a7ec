package persistence

import (
	"time"

	corep "github.com/petrijr/grafo/internal/persistence"
)

func (m *MongoSinkTestSuite) TestAppendAndListByRun() {
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-a", "market_data", false)))
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-a", "technical_analyst", false)))
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-b", "market_data", true)))

	logs, err := m.sink.ListByRun(m.ctx, "run-a")
	m.NoError(err)
	m.Len(logs, 2)
	m.Equal("market_data", logs[0].StepName, "logs should come back in append order")
	m.Equal("technical_analyst", logs[1].StepName)
	m.False(logs[0].Failed())

	ticker, ok := logs[0].Input.StringValue("ticker")
	m.True(ok, "input snapshot should survive the round trip")
	m.Equal("600519", ticker)

	signal, ok := logs[0].Output.StringValue("signal")
	m.True(ok, "output snapshot should survive the round trip")
	m.Equal("bullish", signal)
}

func (m *MongoSinkTestSuite) TestFailedInvocationKeepsErrorAndDropsOutput() {
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-f", "market_data", true)))

	logs, err := m.sink.ListByRun(m.ctx, "run-f")
	m.NoError(err)
	m.Len(logs, 1)
	m.True(logs[0].Failed())
	m.Equal("market data unavailable", logs[0].Err)
	m.Nil(logs[0].Output)
}

func (m *MongoSinkTestSuite) TestListByRunWithoutLogs() {
	_, err := m.sink.ListByRun(m.ctx, "missing")
	m.ErrorIs(err, corep.ErrNoLogs)
}

func (m *MongoSinkTestSuite) TestRunsOrderedByFirstAppend() {
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-1", "a", false)))
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-2", "a", false)))
	// A later append to run-1 must not move it behind run-2.
	m.NoError(m.sink.Append(m.ctx, sampleLog("run-1", "b", false)))

	runs, err := m.sink.Runs(m.ctx)
	m.NoError(err)
	m.Equal([]string{"run-1", "run-2"}, runs)
}

func (m *MongoSinkTestSuite) TestTimestampsSurviveRoundTrip() {
	rec := sampleLog("run-t", "a", false)
	m.NoError(m.sink.Append(m.ctx, rec))

	logs, err := m.sink.ListByRun(m.ctx, "run-t")
	m.NoError(err)
	m.True(rec.StartedAt.Equal(logs[0].StartedAt), "BSON dates keep millisecond precision")
	m.Equal(time.Second, logs[0].Duration())
}

func (m *MongoSinkTestSuite) TestDefaultNames() {
	sink := NewMongoSink(m.client, "", "")
	m.Equal("grafo", sink.coll.Database().Name())
	m.Equal("execution_logs", sink.coll.Name())
}
