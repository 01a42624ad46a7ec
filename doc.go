// Package grafo provides a lightweight, embeddable DAG execution engine for Go.
//
// Grafo is designed for pipelines whose steps share one evolving state: fan a
// snapshot out to parallel workers, join their results deterministically, and
// branch on the data they produced. It runs fully in Go, records a complete
// audit trail of every step invocation, and integrates cleanly into existing
// codebases.
//
// # Core Concepts
//
// The Grafo programming model is intentionally small and idiomatic:
//
//  1. Engine
//  2. State
//  3. GraphBuilder
//  4. StepFunc
//  5. Router
//  6. ExecutionLog
//
// These components form a complete execution system with deterministic
// merges, per-step observability, and a clear mental model.
//
// # Engine
//
// The Engine stores step and graph definitions, executes runs, and provides
// APIs to:
//   - run a registered graph to completion
//   - read run reports (final state, per-node outcomes)
//   - list past runs by graph or status
//
// Execution logs can be sunk into different stores:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Redis, Postgres and MongoDB via satellite modules
//
// A run is synchronous: Run returns when every reachable node has finished
// or the first step error aborts dispatching.
//
// # State
//
// State is the value flowing through a run: a message ledger, a Data map for
// business payloads and a Metadata map for run control flags. Every step receives
// its own clone, so parallel branches never share memory; at a join the
// engine merges branch deltas in edge declaration order.
//
// # GraphBuilder
//
// GraphBuilder provides the ergonomic, declarative API used to define
// graphs. It supports the shapes the scheduler understands:
//
//   - Sequential chains (Chain)
//   - Fan-out to parallel branches (FanOut)
//   - Fan-in joins that wait for all predecessors (FanIn)
//   - Conditional routing on state (Router)
//
// Example:
//
//	grafo.New("ingest").
//	    Chain("fetch", "parse").
//	    FanOut("parse", "index", "summarize").
//	    FanIn("publish", "index", "summarize")
//
// Definitions created with GraphBuilder are registered into an Engine before
// use; registration validates the structure (reachability, no static
// cycles, router nodes without static successors).
//
// # StepFunc
//
// A StepFunc is the fundamental executable unit of a graph:
//
//	type StepFunc func(ctx context.Context, state *State) (*State, error)
//
// Steps are:
//   - isolated: they receive their own clone of the state
//   - observable: everything they log via LoggerFromContext is captured
//   - fallible: a returned error fails the run; a panic is recovered and
//     reported the same way
//
// Decorators like WithRetry and WithTimeout compose behavior onto a step
// before registration; the engine sees one ordinary step.
//
// # Router
//
// A Router picks the single next node after a branch point, as a pure
// function of the state. Returning End terminates that path. Routers replace
// static successors on their node; the scheduler validates their targets at
// runtime.
//
// # ExecutionLog
//
// Every step invocation produces exactly one ExecutionLog: input and output
// snapshots, timing, captured step logging, and the error if any. Logs land
// in the configured LogSink; NewSQLiteAudit bundles an engine with a durable,
// queryable store.
//
// # Summary
//
// Grafo's goal is to give Go developers a dataflow engine that feels like
// Go: easy to embed, easy to test, deterministic, and without operational
// overhead. Engines execute graphs, GraphBuilder defines them, StepFuncs
// contain business logic, Routers pick branches, and ExecutionLogs make
// every run auditable.
//
// For examples, see the /examples directory or the project README.
package grafo
