package api

import (
	"errors"
	"fmt"
)

// ErrGraphNotFound is returned by Run when the named graph was never
// registered.
var ErrGraphNotFound = errors.New("graph not found")

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DuplicateNameError reports a registration collision in the step registry.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("step already registered: %s", e.Name)
}

// UnknownStepError reports a lookup of, or a graph reference to, a step name
// that was never registered.
type UnknownStepError struct {
	Name string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step: %s", e.Name)
}

// InvalidRouteError reports a router returning a value that is neither a
// declared node nor End, a node that already executed in this run, or a
// node whose static predecessors own its scheduling. It is fatal: the run
// aborts.
type InvalidRouteError struct {
	// Node is the routed-from node whose router misbehaved.
	Node string

	// Target is the value the router returned.
	Target string

	// Reason distinguishes an undeclared target from an already-executed one.
	Reason string
}

func (e *InvalidRouteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("router at %s returned %q: %s", e.Node, e.Target, e.Reason)
	}
	return fmt.Sprintf("router at %s returned %q: not a declared node", e.Node, e.Target)
}

// StepExecutionError wraps any error raised by a step. It is what Run
// returns when a node fails; the accumulated messages and data from steps
// that did complete remain available on the RunReport for diagnostics.
type StepExecutionError struct {
	Step  string
	RunID string
	Err   error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed (run %s): %v", e.Step, e.RunID, e.Err)
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}
