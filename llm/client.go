// Package llm provides the language-model boundary used by analysis steps.
//
// Steps never talk to a provider directly and never reach for process-global
// configuration: a Client is injected into each step constructor, so tests
// swap in a StaticClient and offline runs keep working.
package llm

import "context"

// Client produces text completions.
type Client interface {
	// Complete sends a bare user prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a user prompt under a system instruction.
	CompleteWithSystem(ctx context.Context, system, user string) (string, error)
}
