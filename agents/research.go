package agents

import (
	"context"
	"fmt"
	"math"

	"github.com/petrijr/grafo/pkg/api"
)

// analystOrder fixes the order signals are read and reported in.
var analystOrder = []struct {
	label string
	key   string
}{
	{"technical", KeyTechnicalSignal},
	{"fundamentals", KeyFundamentalSignal},
	{"sentiment", KeySentimentSignal},
	{"valuation", KeyValuationSignal},
}

// analystSignals collects the four analyst verdicts. All four must be
// present; a researcher running without them is a wiring error.
func analystSignals(state *api.State, step string) ([]Signal, error) {
	signals := make([]Signal, 0, len(analystOrder))
	for _, a := range analystOrder {
		v, ok := state.Value(a.key)
		if !ok {
			return nil, fmt.Errorf("%s: missing %s", step, a.key)
		}
		sig, ok := v.(Signal)
		if !ok {
			return nil, fmt.Errorf("%s: %s has unexpected type %T", step, a.key, v)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// researcherStep builds a one-sided thesis. Each analyst contributes its
// confidence when it agrees with the stance and a small discount when it is
// neutral; opposing signals contribute nothing.
func researcherStep(stance, outKey string) api.StepFunc {
	step := StepResearcherBull
	if stance == Bearish {
		step = StepResearcherBear
	}
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		signals, err := analystSignals(state, step)
		if err != nil {
			return nil, err
		}

		support := 0.0
		points := make([]string, 0, len(signals))
		for i, sig := range signals {
			label := analystOrder[i].label
			switch sig.Direction {
			case stance:
				support += sig.Confidence
				points = append(points, fmt.Sprintf("%s %s at %.0f%%", label, sig.Direction, sig.Confidence*100))
			case Neutral:
				support += 0.25
				points = append(points, fmt.Sprintf("%s neutral, counted at a discount", label))
			default:
				points = append(points, fmt.Sprintf("%s opposes (%s at %.0f%%)", label, sig.Direction, sig.Confidence*100))
			}
		}

		thesis := Thesis{
			Stance:     stance,
			Confidence: clamp(support/float64(len(signals)), 0.05, 0.95),
			Points:     points,
		}
		api.LoggerFromContext(ctx).Info("thesis built",
			"stance", stance, "confidence", thesis.Confidence)

		state.SetValue(outKey, thesis)
		state.AddMessage(api.Message{
			Role: "assistant",
			Name: step,
			Content: fmt.Sprintf("%s case at %.0f%% confidence: %s",
				stance, thesis.Confidence*100, points[0]),
		})
		return state, nil
	}
}

// debateRoomStep weighs the two theses against each other. The margin of
// confidence decides the direction and how convincing the conclusion is.
func debateRoomStep() api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		bull, err := thesisFrom(state, KeyBullThesis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepDebateRoom, err)
		}
		bear, err := thesisFrom(state, KeyBearThesis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StepDebateRoom, err)
		}

		margin := bull.Confidence - bear.Confidence
		sig := Signal{
			Direction:  directionFromScore(margin, 0.1),
			Confidence: clamp(0.5+math.Abs(margin), 0, 0.95),
			Reasoning: fmt.Sprintf("bull case %.0f%% vs bear case %.0f%%",
				bull.Confidence*100, bear.Confidence*100),
		}
		return emitSignal(ctx, state, StepDebateRoom, KeyDebateConclusion, sig), nil
	}
}

func thesisFrom(state *api.State, key string) (Thesis, error) {
	v, ok := state.Value(key)
	if !ok {
		return Thesis{}, fmt.Errorf("missing %s", key)
	}
	thesis, ok := v.(Thesis)
	if !ok {
		return Thesis{}, fmt.Errorf("%s has unexpected type %T", key, v)
	}
	return thesis, nil
}
