package grafo

import (
	"context"
	"time"
)

// RetryPolicy describes how a wrapped step retries. The engine never sees
// retries; WithRetry resolves them inside the step invocation, so the
// execution log records one invocation covering all attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// BackoffMultiplier grows the delay each attempt. Values <= 0 mean 2.0.
	BackoffMultiplier float64

	// MaxBackoff caps the delay; <= 0 means no cap.
	MaxBackoff time.Duration
}

// RetryBuilder provides a fluent way to construct RetryPolicy values
// for use with WithRetry.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry creates a RetryBuilder with the given maxAttempts.
//
// maxAttempts <= 0 is treated as 1 (no retries).
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryBuilder{
		policy: RetryPolicy{
			MaxAttempts: maxAttempts,
		},
	}
}

// WithExponentialBackoff configures exponential backoff:
//
//   - initial is the delay before the first retry.
//   - multiplier > 1 grows the delay each attempt (default 2.0 if <= 0).
//   - max caps the delay; if <= 0, there is no cap.
//
// Example:
//
//	Retry(3).WithExponentialBackoff(100*time.Millisecond, 2.0, 2*time.Second)
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	p := r.policy
	p.InitialBackoff = initial
	p.MaxBackoff = max
	if multiplier <= 0 {
		multiplier = 2.0
	}
	p.BackoffMultiplier = multiplier
	return RetryBuilder{policy: p}
}

// WithConstantBackoff configures a constant backoff between retries.
//
// This is equivalent to an exponential backoff with multiplier 1.0 and
// no max cap.
func (r RetryBuilder) WithConstantBackoff(delay time.Duration) RetryBuilder {
	p := r.policy
	p.InitialBackoff = delay
	p.MaxBackoff = 0
	p.BackoffMultiplier = 1.0
	return RetryBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries will still respect MaxAttempts.
func (r RetryBuilder) Immediate() RetryBuilder {
	p := r.policy
	p.InitialBackoff = 0
	p.MaxBackoff = 0
	p.BackoffMultiplier = 0
	return RetryBuilder{policy: p}
}

// Policy returns the underlying RetryPolicy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}

// Wrap applies the policy to a step.
func (r RetryBuilder) Wrap(fn StepFunc) StepFunc {
	return WithRetry(fn, r.policy)
}

// WithRetry retries fn per the policy. Each attempt receives the original
// input state, so a failed attempt's partial writes never leak into the
// next one. Returns the last attempt's error when all attempts fail, and
// stops early when the context is done.
func WithRetry(fn StepFunc, policy RetryPolicy) StepFunc {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	return func(ctx context.Context, state *State) (*State, error) {
		var lastErr error
		backoff := policy.InitialBackoff

		for attempt := 1; attempt <= attempts; attempt++ {
			out, err := fn(ctx, state.Clone())
			if err == nil {
				return out, nil
			}
			lastErr = err

			if attempt == attempts {
				break
			}
			if backoff > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff = time.Duration(float64(backoff) * multiplier)
				if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
					backoff = policy.MaxBackoff
				}
			} else if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		return nil, lastErr
	}
}
