package engine

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/petrijr/grafo/internal/workpool"
	"github.com/petrijr/grafo/pkg/api"
)

type eventKind int

const (
	eventRunning eventKind = iota
	eventDone
)

// event is what a worker reports back to the coordinator. Workers never
// touch scheduling state themselves; they only execute steps and send
// events, so all bookkeeping below is single-goroutine.
type event struct {
	node   string
	kind   eventKind
	output *api.State
	err    error
}

// execution holds the mutable state of one run. It is owned by the
// coordinator goroutine for the duration of run and must not be shared.
type execution struct {
	ctx    context.Context
	runID  string
	def    api.GraphDefinition
	steps  map[string]api.StepDefinition
	ins    *instrumenter
	obs    api.Observer
	logger *slog.Logger

	pool   *workpool.Pool
	events chan event

	states  map[string]api.NodeState
	waiting map[string]int
	inputs  map[string]*api.State
	outputs map[string]*api.State

	ledger   []api.Message
	final    *api.State
	inFlight int
	failure  error
}

func newExecution(ctx context.Context, runID string, def api.GraphDefinition, steps map[string]api.StepDefinition, ins *instrumenter, obs api.Observer, logger *slog.Logger, workers int) *execution {
	e := &execution{
		ctx:    ctx,
		runID:  runID,
		def:    def,
		steps:  steps,
		ins:    ins,
		obs:    obs,
		logger: logger,

		// Every node is dispatched at most once, so a queue the size of
		// the graph means Submit never blocks the coordinator, and an
		// event buffer of twice that means workers never block either.
		pool:   workpool.New(workers, len(def.Nodes)),
		events: make(chan event, 2*len(def.Nodes)),

		states:  make(map[string]api.NodeState, len(def.Nodes)),
		waiting: make(map[string]int, len(def.Nodes)),
		inputs:  make(map[string]*api.State, len(def.Nodes)),
		outputs: make(map[string]*api.State, len(def.Nodes)),
	}
	for _, n := range def.Nodes {
		e.states[n] = api.NodePending
		e.waiting[n] = len(def.Predecessors(n))
	}
	return e
}

// run drives the graph from its entry node until the frontier drains:
// no node is ready, running, or routed anywhere further. Nodes the run
// never reached stay pending. The returned state carries the full run
// message ledger and every completed node's data, applied in completion
// order.
func (e *execution) run(initial *api.State) (*api.State, map[string]api.NodeState, error) {
	e.final = initial.Clone()
	e.ledger = append(e.ledger, initial.Messages...)

	e.dispatch(e.def.Entry, initial.Clone())

	for e.inFlight > 0 {
		ev := <-e.events
		switch ev.kind {
		case eventRunning:
			if e.states[ev.node] == api.NodeReady {
				e.states[ev.node] = api.NodeRunning
			}
		case eventDone:
			e.inFlight--
			e.handleDone(ev)
		}
	}
	e.pool.Close()

	e.final.Messages = append([]api.Message(nil), e.ledger...)

	states := make(map[string]api.NodeState, len(e.states))
	for n, st := range e.states {
		states[n] = st
	}
	return e.final, states, e.failure
}

// dispatch hands a node to the pool. The input snapshot is recorded so
// the node's data delta can be computed against it on completion.
func (e *execution) dispatch(node string, input *api.State) {
	e.states[node] = api.NodeReady
	e.inputs[node] = input

	def := e.steps[node]
	submitted := e.pool.Submit(func() {
		e.events <- event{node: node, kind: eventRunning}
		out, err := e.ins.execute(e.ctx, def, e.runID, input)
		e.events <- event{node: node, kind: eventDone, output: out, err: err}
	})
	if !submitted {
		// The queue holds one slot per node, so a refused submission means
		// the run's bookkeeping is broken. Fail the run; incrementing
		// inFlight with no event coming would hang the coordinator.
		e.states[node] = api.NodeFailed
		if e.failure == nil {
			e.failure = fmt.Errorf("scheduler: could not queue node %s", node)
		}
		return
	}
	e.inFlight++
}

func (e *execution) handleDone(ev event) {
	if ev.err != nil {
		e.states[ev.node] = api.NodeFailed
		if e.failure == nil {
			e.failure = ev.err
		}
		return
	}

	e.states[ev.node] = api.NodeCompleted
	e.outputs[ev.node] = ev.output
	e.recordCompletion(ev.node, ev.output)

	// A failed run dispatches nothing new; siblings already in flight
	// drain through the loop above and are recorded like any other.
	if e.failure != nil {
		return
	}
	if err := e.ctx.Err(); err != nil {
		e.failure = err
		return
	}

	if router, ok := e.def.Routers[ev.node]; ok {
		e.route(ev.node, router, ev.output)
		return
	}

	for _, succ := range e.def.Successors(ev.node) {
		e.waiting[succ]--
		if e.waiting[succ] > 0 {
			continue
		}
		e.dispatch(succ, e.joinInput(succ))
	}
}

// recordCompletion folds a completed node's contribution into the run:
// its appended messages go onto the ledger, and the data and metadata
// keys it changed are applied to the final state in completion order.
func (e *execution) recordCompletion(node string, out *api.State) {
	in := e.inputs[node]
	if len(out.Messages) > len(in.Messages) {
		e.ledger = append(e.ledger, out.Messages[len(in.Messages):]...)
	}
	for _, k := range changedKeys(in.Data, out.Data) {
		e.final.SetValue(k, out.Data[k])
	}
	for _, k := range changedKeys(in.Metadata, out.Metadata) {
		e.final.SetMeta(k, out.Metadata[k])
	}
}

// route evaluates a conditional router against the node's output. The
// call happens on the coordinator so routing decisions are serialized
// with all other scheduling.
func (e *execution) route(node string, router api.RouterFunc, out *api.State) {
	target, err := evalRouter(router, out.Clone())
	if err != nil {
		e.failure = err
		return
	}
	if target == api.End {
		return
	}
	if !e.def.HasNode(target) {
		e.failure = &api.InvalidRouteError{Node: node, Target: target, Reason: "target is not a declared node"}
		return
	}
	// A routed node and a join node are scheduled by different rules. A
	// target with static in-edges would be dispatched here before its
	// predecessors complete and again when its join drains, so the two
	// rules must never overlap on one node.
	if len(e.def.Predecessors(target)) > 0 {
		e.failure = &api.InvalidRouteError{Node: node, Target: target, Reason: "target has static predecessors; only its join may schedule it"}
		return
	}
	switch e.states[target] {
	case api.NodePending:
		e.dispatch(target, out.Clone())
	case api.NodeReady, api.NodeRunning:
		e.failure = &api.InvalidRouteError{Node: node, Target: target, Reason: "target already scheduled"}
	default:
		e.failure = &api.InvalidRouteError{Node: node, Target: target, Reason: "target already executed"}
	}
}

func evalRouter(router api.RouterFunc, state *api.State) (target string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("router panicked: %v", r)
		}
	}()
	return router(state), nil
}

// joinInput builds the input for a node whose predecessors have all
// completed. The first declared predecessor's output is the base; each
// later predecessor contributes only the keys it changed itself, so
// shared upstream keys do not register as conflicts. When two
// predecessors changed the same key, the later-declared one wins and
// the collision is reported.
func (e *execution) joinInput(node string) *api.State {
	preds := e.def.Predecessors(node)
	base := e.outputs[preds[0]].Clone()
	if len(preds) == 1 {
		return base
	}

	writers := make(map[string]string)
	metaTouched := make(map[string]struct{})
	for _, k := range changedKeys(e.inputs[preds[0]].Data, e.outputs[preds[0]].Data) {
		writers[k] = preds[0]
	}
	for _, k := range changedKeys(e.inputs[preds[0]].Metadata, e.outputs[preds[0]].Metadata) {
		metaTouched[k] = struct{}{}
	}
	for _, p := range preds[1:] {
		for _, k := range changedKeys(e.inputs[p].Data, e.outputs[p].Data) {
			if prev, seen := writers[k]; seen {
				e.logger.Warn("merge conflict at fan-in",
					slog.String("run_id", e.runID),
					slog.String("node", node),
					slog.String("key", k),
					slog.String("kept", p),
					slog.String("overwritten", prev),
				)
				e.obs.OnMergeConflict(e.ctx, e.runID, node, k)
			}
			writers[k] = p
			base.SetValue(k, e.outputs[p].Data[k])
		}
		for _, k := range changedKeys(e.inputs[p].Metadata, e.outputs[p].Metadata) {
			metaTouched[k] = struct{}{}
			base.SetMeta(k, e.outputs[p].Metadata[k])
		}
	}

	// The merged view is authoritative for every key the branches wrote:
	// re-assert it on the accumulated final state so that declaration
	// order, not completion order, decides conflicting keys there too.
	for k := range writers {
		e.final.SetValue(k, base.Data[k])
	}
	for k := range metaTouched {
		e.final.SetMeta(k, base.Metadata[k])
	}

	// A join sees every message appended anywhere in the run so far, not
	// just along its own predecessor branches.
	base.Messages = append([]api.Message(nil), e.ledger...)
	return base
}

// changedKeys returns the keys whose value in after differs from before,
// sorted for deterministic application and conflict reporting. Keys
// deleted by a step are ignored; state data is append-preferred.
func changedKeys(before, after map[string]any) []string {
	var keys []string
	for k, v := range after {
		prev, ok := before[k]
		if !ok || !reflect.DeepEqual(prev, v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
