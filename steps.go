package grafo

import (
	"context"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// Step helpers and decorators. These compose StepFuncs before registration;
// the engine sees one ordinary step.

// WithTimeout bounds a step's execution time. The wrapped step observes the
// shorter of d and the run's own deadline through its context.
func WithTimeout(fn StepFunc, d time.Duration) StepFunc {
	return func(ctx context.Context, state *State) (*State, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return fn(ctx, state)
	}
}

// Sequence runs the given steps in order inside a single node, feeding each
// step the previous step's output. The first error stops the sequence.
func Sequence(steps ...StepFunc) StepFunc {
	return func(ctx context.Context, state *State) (*State, error) {
		var err error
		for _, step := range steps {
			state, err = step(ctx, state)
			if err != nil {
				return nil, err
			}
		}
		return state, nil
	}
}

// SetData returns a step that writes one Data key and passes the state on.
func SetData(key string, value any) StepFunc {
	return func(ctx context.Context, state *State) (*State, error) {
		state.SetValue(key, value)
		return state, nil
	}
}

// AppendMessage returns a step that appends one message to the ledger.
func AppendMessage(role, name, content string) StepFunc {
	return func(ctx context.Context, state *State) (*State, error) {
		state.AddMessage(api.Message{Role: role, Name: name, Content: content})
		return state, nil
	}
}
