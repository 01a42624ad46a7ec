// Package marketdata supplies security resolution, daily bars and news to
// the analysis pipeline. Providers are collaborators behind an interface;
// the engine never sees them, only the steps that call them.
package marketdata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Security identifies one listed instrument.
type Security struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Bar is one day of OHLCV data.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// News is one headline about a security.
type News struct {
	Date  time.Time `json:"date"`
	Title string    `json:"title"`
	Src   string    `json:"source"`
}

// Provider resolves queries to securities and fetches their history.
type Provider interface {
	// ResolveTicker maps a code, a name or a free-text query to a single
	// security. With nonInteractive set, the first match wins; otherwise an
	// ambiguous query fails with *AmbiguousMatchError so the caller can ask
	// the user. No match at all fails with *NotFoundError.
	ResolveTicker(ctx context.Context, query string, nonInteractive bool) (Security, error)

	// FetchDaily returns day bars for [start, end], oldest first, failing
	// with *DataUnavailableError.
	FetchDaily(ctx context.Context, code string, start, end time.Time) ([]Bar, error)

	// FetchNews returns up to limit recent headlines, newest first.
	FetchNews(ctx context.Context, code string, limit int) ([]News, error)
}

// Snapshot fetches bars and news for one security concurrently. Either
// failure cancels the other fetch and is returned as-is.
func Snapshot(ctx context.Context, p Provider, code string, start, end time.Time, newsLimit int) ([]Bar, []News, error) {
	var (
		bars []Bar
		news []News
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bars, err = p.FetchDaily(ctx, code, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		news, err = p.FetchNews(ctx, code, newsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bars, news, nil
}
