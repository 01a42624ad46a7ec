package persistence

import (
	"time"

	corep "github.com/petrijr/grafo/internal/persistence"
)

func (s *RedisSinkTestSuite) TestAppendAndListByRun() {
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-a", "market_data", false)))
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-a", "technical_analyst", false)))
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-b", "market_data", true)))

	logs, err := s.sink.ListByRun(s.ctx, "run-a")
	s.NoError(err)
	s.Len(logs, 2)
	s.Equal("market_data", logs[0].StepName, "logs should come back in append order")
	s.Equal("technical_analyst", logs[1].StepName)
	s.False(logs[0].Failed())

	ticker, ok := logs[0].Input.StringValue("ticker")
	s.True(ok, "input snapshot should survive the round trip")
	s.Equal("600519", ticker)

	signal, ok := logs[0].Output.StringValue("signal")
	s.True(ok, "output snapshot should survive the round trip")
	s.Equal("bullish", signal)
}

func (s *RedisSinkTestSuite) TestFailedInvocationKeepsErrorAndDropsOutput() {
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-f", "market_data", true)))

	logs, err := s.sink.ListByRun(s.ctx, "run-f")
	s.NoError(err)
	s.Len(logs, 1)
	s.True(logs[0].Failed())
	s.Equal("market data unavailable", logs[0].Err)
	s.Nil(logs[0].Output)
}

func (s *RedisSinkTestSuite) TestListByRunWithoutLogs() {
	_, err := s.sink.ListByRun(s.ctx, "missing")
	s.ErrorIs(err, corep.ErrNoLogs)
}

func (s *RedisSinkTestSuite) TestRunsOrderedByFirstAppend() {
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-1", "a", false)))
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-2", "a", false)))
	// A later append to run-1 must not move it behind run-2.
	s.NoError(s.sink.Append(s.ctx, sampleLog("run-1", "b", false)))

	runs, err := s.sink.Runs(s.ctx)
	s.NoError(err)
	s.Equal([]string{"run-1", "run-2"}, runs)
}

func (s *RedisSinkTestSuite) TestTimestampsSurviveRoundTrip() {
	rec := sampleLog("run-t", "a", false)
	s.NoError(s.sink.Append(s.ctx, rec))

	logs, err := s.sink.ListByRun(s.ctx, "run-t")
	s.NoError(err)
	s.True(rec.StartedAt.Equal(logs[0].StartedAt))
	s.Equal(time.Second, logs[0].Duration())
}

func (s *RedisSinkTestSuite) TestEmptyPrefixDefaults() {
	sink := NewRedisSink(s.client, "")
	s.Equal("grafo:log:r", sink.keyRun("r"))
}
