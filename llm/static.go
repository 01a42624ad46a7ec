package llm

import (
	"context"
	"strings"
	"sync"
)

// StaticClient returns canned completions, matched by substring of the user
// prompt in registration order. It backs tests and offline runs.
type StaticClient struct {
	mu       sync.Mutex
	rules    []staticRule
	fallback string
	calls    int
}

type staticRule struct {
	substr   string
	response string
}

// NewStaticClient creates a client that answers fallback for any prompt.
func NewStaticClient(fallback string) *StaticClient {
	return &StaticClient{fallback: fallback}
}

// Respond registers a canned response for prompts containing substr. Rules
// are checked in registration order; the first match wins.
func (c *StaticClient) Respond(substr, response string) *StaticClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, staticRule{substr: substr, response: response})
	return c
}

func (c *StaticClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *StaticClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for _, rule := range c.rules {
		if rule.substr != "" && strings.Contains(user, rule.substr) {
			return rule.response, nil
		}
	}
	return c.fallback, nil
}

// Calls reports how many completions were requested.
func (c *StaticClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
