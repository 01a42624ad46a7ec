// Package api contains the core building blocks used by the grafo execution
// engine. It provides the low-level primitives for defining steps and
// graphs, carrying shared state through a run, and observing engine
// behavior.
//
// Most users interact with the higher-level grafo package, which re-exports
// selected types and helpers from this package. The api package is intended
// for advanced use cases, custom integrations, or contributors extending the
// engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - Shared state
//   - Steps and step functions
//   - Graph definitions
//   - Execution logs
//   - Observability
//
// These primitives are assembled by the higher-level GraphBuilder API in the
// grafo package, but can also be used directly where fine-grained control is
// needed.
//
// # Shared State
//
// A State is the single record threaded through every step of a run. Its
// Messages field is an append-only audit trail, Data carries the business
// payload, and Metadata carries execution-control flags such as the run ID.
// The engine hands every step its own clone; at fan-out points each branch
// proceeds on an independent copy, and at fan-in points the engine merges
// what the branches wrote.
//
// # Steps and Step Functions
//
// A step is a named, registered unit of work backed by a StepFunc. Step
// functions are expected to:
//
//   - Treat the input state as theirs to extend, not to share: return the
//     state to continue with rather than mutating structures reachable from
//     other branches.
//   - Only read Data keys written by themselves or a declared predecessor,
//     documenting those keys in the step's Description.
//   - Write progress through the logger from LoggerFromContext so it lands
//     in the invocation's ExecutionLog rather than on process stdout.
//
// # Graph Definitions
//
// A GraphDefinition declares nodes (step names), unconditional edges, and
// router functions. Edges express dependency: a node runs only after all of
// its predecessors completed, which makes a node with several incoming edges
// a join. A node with several outgoing edges fans out into branches that run
// concurrently. A node with a router chooses exactly one successor at
// runtime, or End to finish that path.
//
// Definitions are immutable once registered and are validated before any
// run: unknown nodes, duplicate or self edges, unreachable nodes, static
// cycles, and router/edge conflicts are all rejected up front.
//
// # Execution Logs
//
// Every step invocation produces exactly one ExecutionLog — success,
// failure, or panic — carrying timing, input and output snapshots, captured
// step output, and the error if any. Logs flow into a LogSink; sink failures
// are logged and never abort the run.
//
// # Observability
//
// The api package defines the Observer interface, which the engine uses to
// report run and step lifecycle events and merge conflicts.
//
// Observers can be used to:
//
//   - Log run and step transitions
//   - Collect metrics (e.g. counts, latencies, error rates)
//   - Integrate with external monitoring systems
//
// The grafo package exposes ready-made implementations such as logging and
// basic in-memory metrics, along with helpers to combine multiple observers.
//
// # Usage
//
// Most applications should start from the grafo package, using the
// GraphBuilder and engine constructors provided there. The api package is
// useful when you need lower-level access, custom composition, or when
// contributing changes to the core engine.
//
// See the grafo package documentation and the examples directory for
// end-to-end usage.
package api
