package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/petrijr/grafo/pkg/api"
)

// riskManagementStep grades how hostile the tape is and caps the position
// size accordingly. Volatility and drawdown each contribute up to four
// points, a bearish debate up to two.
func riskManagementStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepRiskManagement)
		if err != nil {
			return nil, err
		}
		debate, err := signalFrom(state, KeyDebateConclusion)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepRiskManagement, err)
		}

		closes := closingPrices(md.Bars)
		vol := returnsStddev(closes)
		dd := maxDrawdown(closes)

		score := clamp(vol/0.005, 0, 4) + clamp(dd/0.10, 0, 4)
		switch debate.Direction {
		case Bearish:
			score += 2
		case Neutral:
			score++
		}

		assessment := RiskAssessment{
			Score:            score,
			MaxPositionRatio: clamp(1-score/10, 0.1, 0.9),
			Reasoning: fmt.Sprintf("daily volatility %.2f%%, max drawdown %.1f%%, debate %s",
				vol*100, dd*100, debate.Direction),
		}
		api.LoggerFromContext(ctx).Info("risk graded",
			"score", assessment.Score, "max_position_ratio", assessment.MaxPositionRatio)

		state.SetValue(KeyRiskAssessment, assessment)
		state.AddMessage(api.Message{
			Role: "assistant",
			Name: StepRiskManagement,
			Content: fmt.Sprintf("risk %.1f/10, position capped at %.0f%% of cash: %s",
				assessment.Score, assessment.MaxPositionRatio*100, assessment.Reasoning),
		})
		return state, nil
	}
}

var (
	easingWords     = []string{"stimulus", "rate cut", "subsidy", "tax break", "easing", "support package"}
	tighteningWords = []string{"tariff", "sanction", "rate hike", "regulator", "probe", "crackdown", "tightening"}
)

// macroAnalystStep scans the headlines for policy pressure on the name.
func macroAnalystStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		md, err := snapshot(state, StepMacroAnalyst)
		if err != nil {
			return nil, err
		}

		easing, tightening := 0, 0
		for _, item := range md.News {
			title := strings.ToLower(item.Title)
			if containsAny(title, easingWords) {
				easing++
			}
			if containsAny(title, tighteningWords) {
				tightening++
			}
		}

		sig := Signal{Direction: Neutral, Confidence: 0.5, Reasoning: "no policy signals in the tape"}
		if total := easing + tightening; total > 0 {
			score := float64(easing-tightening) / float64(total)
			sig = Signal{
				Direction:  directionFromScore(score, 0.1),
				Confidence: clamp(0.5+math.Abs(score)/2, 0, 0.9),
				Reasoning: fmt.Sprintf("%d easing and %d tightening policy headlines",
					easing, tightening),
			}
		}
		return emitSignal(ctx, state, StepMacroAnalyst, KeyMacroOutlook, sig), nil
	}
}

// Signal weights for the final decision. Valuation and fundamentals carry
// the case; sentiment only nudges it.
const (
	weightTechnical    = 0.25
	weightFundamentals = 0.30
	weightSentiment    = 0.10
	weightValuation    = 0.35
)

// portfolioManagementStep combines everything into a sized order. The
// weighted analyst score, tilted by the debate conclusion and the macro
// outlook, picks the action; the risk assessment caps how much cash a buy
// may spend.
func portfolioManagementStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		signals, err := analystSignals(state, StepPortfolioManagement)
		if err != nil {
			return nil, err
		}
		debate, err := signalFrom(state, KeyDebateConclusion)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepPortfolioManagement, err)
		}
		macro, err := signalFrom(state, KeyMacroOutlook)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepPortfolioManagement, err)
		}
		risk, err := riskFrom(state)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepPortfolioManagement, err)
		}
		md, err := snapshot(state, StepPortfolioManagement)
		if err != nil {
			return nil, err
		}

		weights := []float64{weightTechnical, weightFundamentals, weightSentiment, weightValuation}
		score := 0.0
		for i, sig := range signals {
			score += weights[i] * directionSign(sig.Direction) * sig.Confidence
		}
		score += 0.2 * directionSign(debate.Direction) * debate.Confidence
		score += 0.1 * directionSign(macro.Direction) * macro.Confidence

		portfolio := portfolioFrom(state)
		price := md.Bars[len(md.Bars)-1].Close

		decision := Decision{
			Action:     ActionHold,
			Confidence: clamp(0.5+math.Abs(score)/2, 0, 0.95),
			Reasoning: fmt.Sprintf("weighted score %+.2f (debate %s, macro %s, risk %.1f/10)",
				score, debate.Direction, macro.Direction, risk.Score),
		}
		switch {
		case score > 0.15:
			var qty int64
			// A provider can hand back a zero or negative close; sizing a
			// buy against it is meaningless.
			if price > 0 {
				qty = int64(portfolio.Cash * risk.MaxPositionRatio / price)
			}
			if qty > 0 {
				decision.Action = ActionBuy
				decision.Quantity = qty
			} else {
				decision.Reasoning += "; buy signal but no cash to deploy"
			}
		case score < -0.15:
			if portfolio.Shares > 0 {
				decision.Action = ActionSell
				decision.Quantity = portfolio.Shares
			} else {
				decision.Reasoning += "; sell signal but nothing held"
			}
		}

		api.LoggerFromContext(ctx).Info("decision made",
			"action", decision.Action, "quantity", decision.Quantity, "score", score)

		state.SetValue(KeyDecision, decision)
		content, err := json.Marshal(decision)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding decision: %w", StepPortfolioManagement, err)
		}
		state.AddMessage(api.Message{
			Role:    "assistant",
			Name:    StepPortfolioManagement,
			Content: string(content),
		})
		return state, nil
	}
}

const reportSystemPrompt = `You are a financial analyst assistant. You turn
structured trading pipeline output into a short, plain-language report for a
retail investor. Explain what each analyst measured and why the final
decision follows. Be concise, state uncertainty where the signals disagree,
and do not invent data that is not in the input.`

// reportAnalyzerStep renders the run as a readable report. With an LLM
// configured it asks for a narrative; otherwise, or when the call fails, it
// falls back to a locally formatted summary. Report trouble never fails the
// run that produced the decision.
func reportAnalyzerStep(deps Deps) api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		logger := api.LoggerFromContext(ctx)
		summary := collectSections(state)

		report := summary
		if deps.LLM != nil {
			answer, err := deps.LLM.CompleteWithSystem(ctx, reportSystemPrompt, summary)
			if err != nil {
				logger.Warn("report generation degraded to local formatting", "err", err)
			} else {
				report = answer
			}
		}

		state.SetValue(KeyReport, report)
		state.AddMessage(api.Message{
			Role:    "assistant",
			Name:    StepReportAnalyzer,
			Content: report,
		})
		return state, nil
	}
}

// collectSections formats whatever the pipeline produced, in pipeline order.
func collectSections(state *api.State) string {
	var b strings.Builder

	if v, ok := state.Value(KeyMarketData); ok {
		if md, ok := v.(MarketData); ok {
			fmt.Fprintf(&b, "Security: %s (%s), %d bars, %d headlines\n",
				md.Security.Name, md.Security.Code, len(md.Bars), len(md.News))
		}
	}
	for _, a := range analystOrder {
		if v, ok := state.Value(a.key); ok {
			if sig, ok := v.(Signal); ok {
				fmt.Fprintf(&b, "%s: %s (%.0f%%) %s\n", a.label, sig.Direction, sig.Confidence*100, sig.Reasoning)
			}
		}
	}
	for _, key := range []string{KeyBullThesis, KeyBearThesis} {
		if v, ok := state.Value(key); ok {
			if thesis, ok := v.(Thesis); ok {
				fmt.Fprintf(&b, "%s researcher (%.0f%%): %s\n",
					thesis.Stance, thesis.Confidence*100, strings.Join(thesis.Points, "; "))
			}
		}
	}
	if v, ok := state.Value(KeyDebateConclusion); ok {
		if sig, ok := v.(Signal); ok {
			fmt.Fprintf(&b, "debate: %s (%.0f%%) %s\n", sig.Direction, sig.Confidence*100, sig.Reasoning)
		}
	}
	if v, ok := state.Value(KeyRiskAssessment); ok {
		if risk, ok := v.(RiskAssessment); ok {
			fmt.Fprintf(&b, "risk: %.1f/10, max position %.0f%% (%s)\n",
				risk.Score, risk.MaxPositionRatio*100, risk.Reasoning)
		}
	}
	if v, ok := state.Value(KeyMacroOutlook); ok {
		if sig, ok := v.(Signal); ok {
			fmt.Fprintf(&b, "macro: %s (%.0f%%) %s\n", sig.Direction, sig.Confidence*100, sig.Reasoning)
		}
	}
	if v, ok := state.Value(KeyDecision); ok {
		if d, ok := v.(Decision); ok {
			fmt.Fprintf(&b, "decision: %s %d (confidence %.0f%%) %s\n",
				d.Action, d.Quantity, d.Confidence*100, d.Reasoning)
		}
	}

	if b.Len() == 0 {
		return "No analysis output to report."
	}
	return strings.TrimRight(b.String(), "\n")
}

func signalFrom(state *api.State, key string) (Signal, error) {
	v, ok := state.Value(key)
	if !ok {
		return Signal{}, fmt.Errorf("missing %s", key)
	}
	sig, ok := v.(Signal)
	if !ok {
		return Signal{}, fmt.Errorf("%s has unexpected type %T", key, v)
	}
	return sig, nil
}

func riskFrom(state *api.State) (RiskAssessment, error) {
	v, ok := state.Value(KeyRiskAssessment)
	if !ok {
		return RiskAssessment{}, fmt.Errorf("missing %s", KeyRiskAssessment)
	}
	risk, ok := v.(RiskAssessment)
	if !ok {
		return RiskAssessment{}, fmt.Errorf("%s has unexpected type %T", KeyRiskAssessment, v)
	}
	return risk, nil
}

func portfolioFrom(state *api.State) Portfolio {
	v, ok := state.Value(KeyPortfolio)
	if !ok {
		return Portfolio{Cash: 100_000}
	}
	if p, ok := v.(Portfolio); ok {
		return p
	}
	return Portfolio{Cash: 100_000}
}

func directionSign(direction string) float64 {
	switch direction {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// returnsStddev is the standard deviation of daily returns.
func returnsStddev(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	if len(returns) == 0 {
		return 0
	}
	m := mean(returns)
	var sum float64
	for _, r := range returns {
		sum += (r - m) * (r - m)
	}
	return math.Sqrt(sum / float64(len(returns)))
}
