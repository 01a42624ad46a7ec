package marketdata

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"
)

// defaultSecurities is the built-in lookup table. It stands in for the
// exchange's code/name listing that a live provider would download.
var defaultSecurities = []Security{
	{Code: "600519", Name: "Kweichow Moutai", Exchange: "SSE"},
	{Code: "000001", Name: "Ping An Bank", Exchange: "SZSE"},
	{Code: "601318", Name: "Ping An Insurance", Exchange: "SSE"},
	{Code: "000858", Name: "Wuliangye Yibin", Exchange: "SZSE"},
	{Code: "300750", Name: "CATL", Exchange: "SZSE"},
	{Code: "688111", Name: "Kingsoft Office", Exchange: "SSE"},
}

// StaticProvider serves a fixed security table and synthetic but
// deterministic history: the same code and date range always produce the
// same bars. It backs tests, examples and offline runs.
type StaticProvider struct {
	securities []Security
}

// NewStaticProvider creates a provider over the given table, or the
// built-in one when none is given.
func NewStaticProvider(securities ...Security) *StaticProvider {
	if len(securities) == 0 {
		securities = defaultSecurities
	}
	return &StaticProvider{securities: securities}
}

var _ Provider = (*StaticProvider)(nil)

// ResolveTicker climbs a match ladder: exact code, exact name, name
// substring, then per-keyword substring for keywords of two or more runes.
func (p *StaticProvider) ResolveTicker(ctx context.Context, query string, nonInteractive bool) (Security, error) {
	if err := ctx.Err(); err != nil {
		return Security{}, err
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Security{}, &NotFoundError{Query: query}
	}

	for _, s := range p.securities {
		if s.Code == trimmed {
			return s, nil
		}
	}

	lower := strings.ToLower(trimmed)
	for _, s := range p.securities {
		if strings.ToLower(s.Name) == lower {
			return s, nil
		}
	}

	matches := p.matchSubstring(lower)
	if len(matches) == 0 {
		for _, keyword := range strings.Fields(lower) {
			if len([]rune(keyword)) < 2 {
				continue
			}
			if matches = p.matchSubstring(keyword); len(matches) > 0 {
				break
			}
		}
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

func (p *StaticProvider) matchSubstring(needle string) []Security {
	var matches []Security
	for _, s := range p.securities {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			matches = append(matches, s)
		}
	}
	return matches
}

// FetchDaily synthesizes a random walk seeded by the code, so repeated
// fetches agree with each other. Weekends have no bars.
func (p *StaticProvider) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.knows(code) {
		return nil, &DataUnavailableError{Code: code, Err: errors.New("unknown security")}
	}
	if end.Before(start) {
		return nil, &DataUnavailableError{Code: code, Err: errors.New("end date before start date")}
	}

	rng := rand.New(rand.NewSource(seed(code)))
	price := 20 + float64(seed(code)%80)

	var bars []Bar
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		// Weekend days still advance the walk; they just emit no bar.
		drift := (rng.Float64() - 0.49) * 0.03
		open := price
		price = price * (1 + drift)
		if price < 1 {
			price = 1
		}
		high := maxF(open, price) * (1 + rng.Float64()*0.01)
		low := minF(open, price) * (1 - rng.Float64()*0.01)
		volume := 1_000_000 + rng.Int63n(9_000_000)

		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		bars = append(bars, Bar{
			Date:   d,
			Open:   round2(open),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(price),
			Volume: volume,
		})
	}
	if len(bars) == 0 {
		return nil, &DataUnavailableError{Code: code, Err: errors.New("no trading days in range")}
	}
	return bars, nil
}

// FetchNews synthesizes headlines, newest first, one per day back from the
// range the provider serves.
func (p *StaticProvider) FetchNews(ctx context.Context, code string, limit int) ([]News, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.knows(code) {
		return nil, &DataUnavailableError{Code: code, Err: errors.New("unknown security")}
	}
	if limit <= 0 {
		limit = 5
	}

	name := code
	for _, s := range p.securities {
		if s.Code == code {
			name = s.Name
			break
		}
	}

	templates := []string{
		"%s beats quarterly estimates",
		"%s expands production capacity",
		"Analysts cut %s price target",
		"%s announces share buyback",
		"Regulator queries %s disclosures",
		"%s signs strategic partnership",
	}

	rng := rand.New(rand.NewSource(seed(code) + 1))
	day := time.Date(2024, time.June, 28, 0, 0, 0, 0, time.UTC)

	news := make([]News, 0, limit)
	for i := 0; i < limit; i++ {
		tmpl := templates[rng.Intn(len(templates))]
		news = append(news, News{
			Date:  day.AddDate(0, 0, -i),
			Title: strings.ReplaceAll(tmpl, "%s", name),
			Src:   "static",
		})
	}
	return news, nil
}

func (p *StaticProvider) knows(code string) bool {
	for _, s := range p.securities {
		if s.Code == code {
			return true
		}
	}
	return false
}

func seed(code string) int64 {
	h := fnv.New64a()
	h.Write([]byte(code))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
