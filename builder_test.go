package grafo

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/grafo/pkg/api"
)

// passthrough satisfies step lookups during Register without doing work.
func passthrough(ctx context.Context, state *State) (*State, error) {
	return state, nil
}

func registerSteps(t *testing.T, eng Engine, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := eng.RegisterStep(StepDefinition{Name: name, Fn: passthrough}); err != nil {
			t.Fatalf("register step %s: %v", name, err)
		}
	}
}

func TestGraphBuilder_BuildAndRegister(t *testing.T) {
	eng := NewInMemoryEngine()
	registerSteps(t, eng, "fetch", "parse", "index", "summarize", "publish")

	graph := New("builder-sample").
		Chain("fetch", "parse").
		FanOut("parse", "index", "summarize").
		FanIn("publish", "index", "summarize").
		Router("publish", func(state *State) string { return End })

	if err := graph.Register(eng); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if graph.Name() != "builder-sample" {
		t.Fatalf("unexpected name: %s", graph.Name())
	}

	def := graph.Definition()
	if def.Entry != "fetch" {
		t.Fatalf("expected implicit entry %q, got %q", "fetch", def.Entry)
	}
	if len(def.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d: %v", len(def.Nodes), def.Nodes)
	}
	if len(def.Edges) != 5 {
		t.Fatalf("expected 5 edges, got %d: %v", len(def.Edges), def.Edges)
	}
	if len(def.Routers) != 1 {
		t.Fatalf("expected 1 router, got %d", len(def.Routers))
	}
}

func TestGraphBuilder_FanInOrderIsEdgeOrder(t *testing.T) {
	// FanIn declares edges in argument order; the join merges predecessor
	// deltas in that order, so the order must survive into the definition.
	def := New("join-order").
		Edge("seed", "left").
		Edge("seed", "right").
		FanIn("merge", "left", "right").
		Definition()

	preds := def.Predecessors("merge")
	if len(preds) != 2 || preds[0] != "left" || preds[1] != "right" {
		t.Fatalf("unexpected predecessor order: %v", preds)
	}
}

func TestGraphBuilder_EntryOverridesFirstDeclared(t *testing.T) {
	def := New("entry-override").
		Chain("a", "b").
		Entry("b").
		Definition()

	if def.Entry != "b" {
		t.Fatalf("expected entry b, got %q", def.Entry)
	}
}

func TestGraphBuilder_NodeDeclaresWithoutEdges(t *testing.T) {
	// Nodes only reachable through a router carry no static edges; Node is
	// how they get declared. Repeat mentions must not duplicate.
	def := New("router-targets").
		Node("gate", "fast", "slow").
		Node("fast").
		Router("gate", func(state *State) string { return "fast" }).
		Definition()

	if len(def.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d: %v", len(def.Nodes), def.Nodes)
	}
	if def.Entry != "gate" {
		t.Fatalf("expected entry gate, got %q", def.Entry)
	}
}

func TestGraphBuilder_RegisterRejectsCycle(t *testing.T) {
	eng := NewInMemoryEngine()

	err := New("cyclic").
		Edge("a", "b").
		Edge("b", "a").
		Register(eng)

	if !errors.Is(err, api.ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestGraphBuilder_RegisterRejectsRouterConflict(t *testing.T) {
	eng := NewInMemoryEngine()

	err := New("conflicted").
		Chain("a", "b").
		Router("a", func(state *State) string { return "b" }).
		Register(eng)

	if !errors.Is(err, api.ErrRouterConflict) {
		t.Fatalf("expected ErrRouterConflict, got %v", err)
	}
}

func TestGraphBuilder_RegisterRequiresRegisteredSteps(t *testing.T) {
	eng := NewInMemoryEngine()

	err := New("unbound").
		Chain("known", "unknown").
		Register(eng)

	if err == nil {
		t.Fatal("expected error for graph naming unregistered steps")
	}
}

func TestGraphBuilder_PanicsOnNilRouter(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil router")
		}
	}()
	New("bad").Router("gate", nil)
}

func TestGraphBuilder_PanicsOnEmptyNodeName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty node name")
		}
	}()
	New("bad").Edge("", "b")
}

func TestGraphBuilder_MustRegisterPanicsOnInvalidGraph(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustRegister to panic")
		}
	}()
	eng := NewInMemoryEngine()
	New("no-nodes").MustRegister(eng)
}
