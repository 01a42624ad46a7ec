package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveTickerLadder(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	ctx := context.Background()

	cases := []struct {
		name     string
		query    string
		wantCode string
	}{
		{name: "exact code", query: "600519", wantCode: "600519"},
		{name: "exact name", query: "CATL", wantCode: "300750"},
		{name: "name is case insensitive", query: "catl", wantCode: "300750"},
		{name: "name substring", query: "moutai", wantCode: "600519"},
		{name: "keyword fallback", query: "kingsoft office shares", wantCode: "688111"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sec, err := p.ResolveTicker(ctx, tc.query, false)
			require.NoError(t, err)
			require.Equal(t, tc.wantCode, sec.Code)
		})
	}
}

func TestResolveTickerAmbiguous(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	ctx := context.Background()

	_, err := p.ResolveTicker(ctx, "Ping An", false)
	var ambiguous *AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.Matches, 2)

	// Non-interactive callers take the first match instead of failing.
	sec, err := p.ResolveTicker(ctx, "Ping An", true)
	require.NoError(t, err)
	require.Equal(t, "000001", sec.Code)
}

func TestResolveTickerNotFound(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	ctx := context.Background()

	for _, query := range []string{"tesla", "", "   ", "p q"} {
		_, err := p.ResolveTicker(ctx, query, false)
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound, "query %q", query)
	}
}

func TestFetchDailyIsDeterministic(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	ctx := context.Background()
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	first, err := p.FetchDaily(ctx, "600519", start, end)
	require.NoError(t, err)
	second, err := p.FetchDaily(ctx, "600519", start, end)
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := p.FetchDaily(ctx, "000001", start, end)
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestFetchDailySkipsWeekendsAndSortsAscending(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	bars, err := p.FetchDaily(context.Background(), "300750", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 21)

	for i, bar := range bars {
		require.NotEqual(t, time.Saturday, bar.Date.Weekday())
		require.NotEqual(t, time.Sunday, bar.Date.Weekday())
		require.GreaterOrEqual(t, bar.High, bar.Low)
		require.Positive(t, bar.Volume)
		if i > 0 {
			require.True(t, bar.Date.After(bars[i-1].Date))
		}
	}
}

func TestFetchDailyErrors(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	ctx := context.Background()
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	var unavailable *DataUnavailableError
	_, err := p.FetchDaily(ctx, "999999", day, day.AddDate(0, 0, 7))
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "999999", unavailable.Code)

	_, err = p.FetchDaily(ctx, "600519", day, day.AddDate(0, 0, -7))
	require.ErrorAs(t, err, &unavailable)

	// A weekend-only range has no trading days.
	saturday := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	_, err = p.FetchDaily(ctx, "600519", saturday, saturday.AddDate(0, 0, 1))
	require.ErrorAs(t, err, &unavailable)
}

func TestFetchNewsNewestFirst(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()

	news, err := p.FetchNews(context.Background(), "600519", 4)
	require.NoError(t, err)
	require.Len(t, news, 4)

	for i, item := range news {
		require.Contains(t, item.Title, "Kweichow Moutai")
		if i > 0 {
			require.True(t, item.Date.Before(news[i-1].Date))
		}
	}

	// A non-positive limit falls back to the default of five.
	news, err = p.FetchNews(context.Background(), "600519", 0)
	require.NoError(t, err)
	require.Len(t, news, 5)
}

func TestFetchNewsUnknownCode(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()

	var unavailable *DataUnavailableError
	_, err := p.FetchNews(context.Background(), "999999", 3)
	require.ErrorAs(t, err, &unavailable)
}

func TestSnapshotFetchesBarsAndNewsTogether(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	bars, news, err := Snapshot(context.Background(), p, "600519", start, end, 3)
	require.NoError(t, err)
	require.NotEmpty(t, bars)
	require.Len(t, news, 3)
}

func TestSnapshotPropagatesFailures(t *testing.T) {
	t.Parallel()
	p := NewStaticProvider()
	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	var unavailable *DataUnavailableError
	_, _, err := Snapshot(context.Background(), p, "999999", start, end, 3)
	require.ErrorAs(t, err, &unavailable)
}
