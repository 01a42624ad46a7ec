package agents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/petrijr/grafo/marketdata"
	"github.com/petrijr/grafo/pkg/api"
)

const dateLayout = "2006-01-02"

// marketDataStep resolves the requested security and loads one snapshot of
// bars and news for the whole fan-out. Analysts never talk to the provider
// themselves; they share this snapshot.
func marketDataStep(deps Deps) api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		logger := api.LoggerFromContext(ctx)

		query, _ := state.StringValue(KeyTicker)
		if query == "" {
			query, _ = state.StringValue(KeyQuery)
		}
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("market_data: no ticker or query in state")
		}

		sec, err := deps.Provider.ResolveTicker(ctx, query, true)
		if err != nil {
			return nil, fmt.Errorf("market_data: %w", err)
		}

		start, end, err := dateRange(state)
		if err != nil {
			return nil, fmt.Errorf("market_data: %w", err)
		}
		limit := newsLimit(state)

		bars, news, err := marketdata.Snapshot(ctx, deps.Provider, sec.Code, start, end, limit)
		if err != nil {
			return nil, fmt.Errorf("market_data: %w", err)
		}
		logger.Info("market data loaded",
			"code", sec.Code, "name", sec.Name, "bars", len(bars), "news", len(news))

		state.SetValue(KeyTicker, sec.Code)
		state.SetValue(KeyMarketData, MarketData{Security: sec, Bars: bars, News: news})
		state.AddMessage(api.Message{
			Role: "assistant",
			Name: StepMarketData,
			Content: fmt.Sprintf("Loaded %d daily bars and %d headlines for %s (%s).",
				len(bars), len(news), sec.Name, sec.Code),
		})
		return state, nil
	}
}

// dateRange reads start_date/end_date from the state. The defaults mirror
// an analyst's habit: end yesterday, look back one year.
func dateRange(state *api.State) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	if raw, ok := state.StringValue(KeyEndDate); ok && raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q: %w", raw, err)
		}
		end = parsed
	}

	start := end.AddDate(-1, 0, 0)
	if raw, ok := state.StringValue(KeyStartDate); ok && raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q: %w", raw, err)
		}
		start = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s before start_date %s",
			end.Format(dateLayout), start.Format(dateLayout))
	}
	return start, end, nil
}

func newsLimit(state *api.State) int {
	v, ok := state.Value(KeyNewsLimit)
	if !ok {
		return 5
	}
	switch n := v.(type) {
	case int:
		if n > 0 {
			return n
		}
	case int64:
		if n > 0 {
			return int(n)
		}
	case float64:
		if n > 0 {
			return int(n)
		}
	}
	return 5
}

// snapshot pulls the shared MarketData out of the state for an analyst.
func snapshot(state *api.State, step string) (MarketData, error) {
	v, ok := state.Value(KeyMarketData)
	if !ok {
		return MarketData{}, fmt.Errorf("%s: market_data not in state", step)
	}
	md, ok := v.(MarketData)
	if !ok {
		return MarketData{}, fmt.Errorf("%s: market_data has unexpected type %T", step, v)
	}
	if len(md.Bars) == 0 {
		return MarketData{}, fmt.Errorf("%s: market_data holds no bars", step)
	}
	return md, nil
}

// emitSignal records an analyst's verdict under key and in the message
// ledger.
func emitSignal(ctx context.Context, state *api.State, step, key string, sig Signal) *api.State {
	api.LoggerFromContext(ctx).Info("signal",
		"direction", sig.Direction, "confidence", sig.Confidence)
	state.SetValue(key, sig)
	state.AddMessage(api.Message{
		Role: "assistant",
		Name: step,
		Content: fmt.Sprintf("%s (confidence %.0f%%): %s",
			sig.Direction, sig.Confidence*100, sig.Reasoning),
	})
	return state
}

// technicalAnalystStep votes three indicators: 20 day momentum, the 5/20
// moving average cross and a 14 day RSI.
func technicalAnalystStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepTechnicalAnalyst)
		if err != nil {
			return nil, err
		}
		closes := closingPrices(md.Bars)

		votes := 0
		var notes []string

		mom := momentum(closes, 20)
		switch {
		case mom > 0.02:
			votes++
			notes = append(notes, fmt.Sprintf("20d momentum +%.1f%%", mom*100))
		case mom < -0.02:
			votes--
			notes = append(notes, fmt.Sprintf("20d momentum %.1f%%", mom*100))
		default:
			notes = append(notes, "momentum flat")
		}

		fast, slow := mean(tail(closes, 5)), mean(tail(closes, 20))
		switch {
		case fast > slow*1.001:
			votes++
			notes = append(notes, fmt.Sprintf("5d avg %.2f above 20d avg %.2f", fast, slow))
		case fast < slow*0.999:
			votes--
			notes = append(notes, fmt.Sprintf("5d avg %.2f below 20d avg %.2f", fast, slow))
		default:
			notes = append(notes, "moving averages entangled")
		}

		rsi := relativeStrength(closes, 14)
		switch {
		case rsi < 30:
			votes++
			notes = append(notes, fmt.Sprintf("RSI %.0f oversold", rsi))
		case rsi > 70:
			votes--
			notes = append(notes, fmt.Sprintf("RSI %.0f overbought", rsi))
		default:
			notes = append(notes, fmt.Sprintf("RSI %.0f", rsi))
		}

		sig := Signal{
			Direction:  directionFromScore(float64(votes), 0.5),
			Confidence: clamp(0.5+0.15*math.Abs(float64(votes)), 0, 0.95),
			Reasoning:  strings.Join(notes, "; "),
		}
		return emitSignal(ctx, state, StepTechnicalAnalyst, KeyTechnicalSignal, sig), nil
	}
}

// fundamentalsAnalystStep grades the series the way a balance sheet reader
// would grade a filing: trailing return for growth, maximum drawdown for
// resilience and the volume trend for liquidity.
func fundamentalsAnalystStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepFundamentalsAnalyst)
		if err != nil {
			return nil, err
		}
		closes := closingPrices(md.Bars)

		ret := closes[len(closes)-1]/closes[0] - 1
		dd := maxDrawdown(closes)
		liq := volumeTrend(md.Bars)

		score := 0.0
		if ret > 0.05 {
			score++
		} else if ret < -0.05 {
			score--
		}
		if dd > 0.25 {
			score--
		} else if dd < 0.10 {
			score++
		}
		if liq > 0.10 {
			score += 0.5
		} else if liq < -0.10 {
			score -= 0.5
		}

		sig := Signal{
			Direction:  directionFromScore(score, 0.5),
			Confidence: clamp(0.5+0.12*math.Abs(score), 0, 0.9),
			Reasoning: fmt.Sprintf("trailing return %.1f%%, max drawdown %.1f%%, volume trend %+.1f%%",
				ret*100, dd*100, liq*100),
		}
		return emitSignal(ctx, state, StepFundamentalsAnalyst, KeyFundamentalSignal, sig), nil
	}
}

var (
	positiveTone = []string{"beats", "expands", "buyback", "partnership", "raises", "record", "wins", "approves"}
	negativeTone = []string{"cut", "cuts", "queries", "probe", "misses", "recall", "warns", "fine", "downgrade"}
)

// sentimentAnalystStep scores headline tone by counting charged words.
func sentimentAnalystStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepSentimentAnalyst)
		if err != nil {
			return nil, err
		}

		pos, neg := 0, 0
		for _, item := range md.News {
			title := strings.ToLower(item.Title)
			if containsAny(title, positiveTone) {
				pos++
			}
			if containsAny(title, negativeTone) {
				neg++
			}
		}

		score := 0.0
		if total := pos + neg; total > 0 {
			score = float64(pos-neg) / float64(total)
		}
		sig := Signal{
			Direction:  directionFromScore(score, 0.15),
			Confidence: clamp(0.5+math.Abs(score)/2, 0, 0.9),
			Reasoning: fmt.Sprintf("%d positive and %d negative headlines of %d",
				pos, neg, len(md.News)),
		}
		return emitSignal(ctx, state, StepSentimentAnalyst, KeySentimentSignal, sig), nil
	}
}

// valuationAnalystStep estimates an owner-earnings value and compares it to
// the market price. Owner earnings are proxied as a fixed yield on the
// average price, grown at the observed trend and discounted over ten years;
// a gap beyond 15 percent either way moves the signal.
func valuationAnalystStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepValuationAnalyst)
		if err != nil {
			return nil, err
		}
		closes := closingPrices(md.Bars)
		price := closes[len(closes)-1]

		const (
			ownerYield = 0.08
			discount   = 0.10
			horizon    = 10
		)
		growth := clamp(momentum(closes, len(closes)-1), -0.05, 0.05)

		earnings := mean(closes) * ownerYield
		value := 0.0
		for year := 1; year <= horizon; year++ {
			earnings *= 1 + growth
			value += earnings / math.Pow(1+discount, float64(year))
		}
		// Terminal value at a steady multiple of the final year.
		value += earnings * 8 / math.Pow(1+discount, horizon)

		gap := value/price - 1
		sig := Signal{
			Direction:  directionFromScore(gap, 0.15),
			Confidence: clamp(0.5+math.Abs(gap), 0, 0.9),
			Reasoning: fmt.Sprintf("owner-earnings value %.2f vs price %.2f, gap %+.1f%%",
				value, price, gap*100),
		}
		return emitSignal(ctx, state, StepValuationAnalyst, KeyValuationSignal, sig), nil
	}
}

func closingPrices(bars []marketdata.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// momentum is the fractional change over the last n steps, or over the whole
// series when it is shorter.
func momentum(closes []float64, n int) float64 {
	if len(closes) < 2 {
		return 0
	}
	i := len(closes) - 1 - n
	if i < 0 {
		i = 0
	}
	if closes[i] == 0 {
		return 0
	}
	return closes[len(closes)-1]/closes[i] - 1
}

func tail(v []float64, n int) []float64 {
	if len(v) <= n {
		return v
	}
	return v[len(v)-n:]
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// relativeStrength is the classic 14 period RSI over simple averages.
func relativeStrength(closes []float64, period int) float64 {
	if len(closes) < 2 {
		return 50
	}
	start := len(closes) - period - 1
	if start < 0 {
		start = 0
	}
	var gains, losses float64
	for i := start + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}

func maxDrawdown(closes []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, price := range closes {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			if dd := 1 - price/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// volumeTrend compares average volume of the last 20 bars with the first 20.
func volumeTrend(bars []marketdata.Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	n := 20
	if len(bars) < 2*n {
		n = len(bars) / 2
	}
	var early, late float64
	for i := 0; i < n; i++ {
		early += float64(bars[i].Volume)
		late += float64(bars[len(bars)-1-i].Volume)
	}
	if early == 0 {
		return 0
	}
	return late/early - 1
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func directionFromScore(score, deadband float64) string {
	switch {
	case score > deadband:
		return Bullish
	case score < -deadband:
		return Bearish
	default:
		return Neutral
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
