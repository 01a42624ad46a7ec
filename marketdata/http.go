package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// HTTPProvider talks to a market data service over JSON REST:
//
//	GET {base}/securities?q={query}
//	GET {base}/securities/{code}/daily?start={date}&end={date}
//	GET {base}/securities/{code}/news?limit={n}
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL with a
// default 30 second request timeout.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return NewHTTPProviderWithClient(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewHTTPProviderWithClient creates a provider using the supplied HTTP
// client, which callers can tune for timeouts or transports.
func NewHTTPProviderWithClient(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

var _ Provider = (*HTTPProvider)(nil)

// ResolveTicker queries the service and applies the same selection rule as
// the static provider: one match wins, several need nonInteractive to pick
// the first.
func (p *HTTPProvider) ResolveTicker(ctx context.Context, query string, nonInteractive bool) (Security, error) {
	q := url.Values{"q": {query}}
	body, status, err := p.get(ctx, "/securities", q)
	if err != nil {
		return Security{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return Security{}, &NotFoundError{Query: query}
	case status != http.StatusOK:
		return Security{}, fmt.Errorf("marketdata: resolve failed with status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var matches []Security
	if err := json.Unmarshal(body, &matches); err != nil {
		return Security{}, fmt.Errorf("marketdata: parsing resolve response: %w", err)
	}
	switch {
	case len(matches) == 0:
		return Security{}, &NotFoundError{Query: query}
	case len(matches) == 1 || nonInteractive:
		return matches[0], nil
	default:
		return Security{}, &AmbiguousMatchError{Query: query, Matches: matches}
	}
}

// FetchDaily returns the service's bars for the closed date range,
// oldest first.
func (p *HTTPProvider) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]Bar, error) {
	q := url.Values{
		"start": {start.Format(dateLayout)},
		"end":   {end.Format(dateLayout)},
	}
	body, status, err := p.get(ctx, "/securities/"+url.PathEscape(code)+"/daily", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &DataUnavailableError{Code: code, Err: statusError(status, body)}
	}

	var bars []Bar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, &DataUnavailableError{Code: code, Err: fmt.Errorf("parsing daily response: %w", err)}
	}
	if len(bars) == 0 {
		return nil, &DataUnavailableError{Code: code, Err: fmt.Errorf("empty history for %s to %s", start.Format(dateLayout), end.Format(dateLayout))}
	}
	return bars, nil
}

// FetchNews returns up to limit headlines, newest first.
func (p *HTTPProvider) FetchNews(ctx context.Context, code string, limit int) ([]News, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	body, status, err := p.get(ctx, "/securities/"+url.PathEscape(code)+"/news", q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &DataUnavailableError{Code: code, Err: statusError(status, body)}
	}

	var news []News
	if err := json.Unmarshal(body, &news); err != nil {
		return nil, &DataUnavailableError{Code: code, Err: fmt.Errorf("parsing news response: %w", err)}
	}
	if len(news) > limit {
		news = news[:limit]
	}
	return news, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, q url.Values) ([]byte, int, error) {
	u := p.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("marketdata: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("marketdata: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("marketdata: reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("status %d: %s", status, msg)
}
