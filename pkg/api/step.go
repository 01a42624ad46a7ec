package api

import (
	"context"
	"time"
)

// StepFunc is a single unit of work. It receives a clone of the current
// state and returns the state to continue with. Implementations must not
// hold on to or mutate the input after returning; the engine relies on copy
// semantics at branch and join points.
type StepFunc func(ctx context.Context, state *State) (*State, error)

// StepDefinition describes a named, registered step.
type StepDefinition struct {
	// Name uniquely identifies the step in the registry and in graphs.
	Name string

	// Description is a human-oriented summary, including any Data keys the
	// step expects its predecessors to have written.
	Description string

	Fn StepFunc
}

// Status represents the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// NodeState is the scheduler's per-node state within a single run.
type NodeState string

const (
	// NodePending means the node has not become runnable. Nodes on branches
	// a router never selected remain Pending in the final report.
	NodePending NodeState = "PENDING"

	// NodeReady means every static predecessor has completed and the node
	// is queued for a worker.
	NodeReady NodeState = "READY"

	NodeRunning   NodeState = "RUNNING"
	NodeCompleted NodeState = "COMPLETED"
	NodeFailed    NodeState = "FAILED"
)

// RunReport holds the outcome of a single graph run.
type RunReport struct {
	// ID is the run identifier, minted by the engine unless supplied via
	// RunWithID. It equals Final.Metadata["run_id"].
	ID string

	// Graph is the name of the graph definition that was executed.
	Graph string

	Status    Status
	StartedAt time.Time
	EndedAt   time.Time

	// Final is the state after the last completed node. On failure it holds
	// the messages and data accumulated by the steps that did complete.
	Final *State

	// Err is nil on success and a *StepExecutionError when a node failed.
	Err error

	// Nodes records the terminal scheduler state of every declared node.
	Nodes map[string]NodeState
}

// RunListOptions filters ListRuns. Zero values mean "no filter".
type RunListOptions struct {
	Graph  string
	Status Status
}

// Engine registers steps and graphs and executes runs.
type Engine interface {
	// RegisterStep adds a step definition to the registry. It returns a
	// *DuplicateNameError if the name is already taken.
	RegisterStep(def StepDefinition) error

	// RegisterGraph validates and registers a graph definition. Every node
	// must name a registered step.
	RegisterGraph(def GraphDefinition) error

	// Run executes a registered graph to completion with a minted run ID.
	// The returned report is also retained for GetRun / ListRuns.
	Run(ctx context.Context, graph string, initial *State) (*RunReport, error)

	// RunWithID is Run with a caller-supplied run ID.
	RunWithID(ctx context.Context, graph, runID string, initial *State) (*RunReport, error)

	// GetRun returns the report of a finished or in-flight run, or
	// ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (*RunReport, error)

	// ListRuns returns reports matching the given options.
	ListRuns(ctx context.Context, opts RunListOptions) ([]*RunReport, error)
}
