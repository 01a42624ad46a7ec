package grafo

import (
	"fmt"

	"github.com/petrijr/grafo/pkg/api"
)

// GraphBuilder provides a fluent API for defining graphs:
//
//	graph := grafo.New("ingest").
//	    Chain("fetch", "parse").
//	    FanOut("parse", "index", "summarize").
//	    Edge("index", "publish").
//	    Edge("summarize", "publish").
//	    Router("publish", pickDestination)
//
//	if err := graph.Register(engine); err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := grafo.Run(ctx, engine, graph.Name(), initial)
//
// Nodes are declared implicitly by the first edge, fan-out or router that
// mentions them, or explicitly with Node. The entry defaults to the first
// node declared; Entry overrides it. Structural validation happens on
// Register, via GraphDefinition.Validate.
type GraphBuilder struct {
	def api.GraphDefinition
}

// New creates a new graph builder with the given name.
func New(name string) *GraphBuilder {
	return &GraphBuilder{
		def: api.GraphDefinition{
			Name:    name,
			Routers: make(map[string]api.RouterFunc),
		},
	}
}

// Name returns the graph name.
func (b *GraphBuilder) Name() string {
	return b.def.Name
}

// Definition returns the underlying GraphDefinition.
// Typically used when interacting with lower-level APIs.
func (b *GraphBuilder) Definition() GraphDefinition {
	return b.def
}

// Entry sets the entry node.
func (b *GraphBuilder) Entry(name string) *GraphBuilder {
	b.declare(name)
	b.def.Entry = name
	return b
}

// Node declares nodes without connecting them. Useful for nodes only
// reachable through a router.
func (b *GraphBuilder) Node(names ...string) *GraphBuilder {
	for _, name := range names {
		b.declare(name)
	}
	return b
}

// Edge adds a dependency: to runs after from.
func (b *GraphBuilder) Edge(from, to string) *GraphBuilder {
	b.declare(from)
	b.declare(to)
	b.def.Edges = append(b.def.Edges, api.Edge{From: from, To: to})
	return b
}

// Chain connects the given nodes in sequence.
func (b *GraphBuilder) Chain(nodes ...string) *GraphBuilder {
	for i, node := range nodes {
		b.declare(node)
		if i > 0 {
			b.def.Edges = append(b.def.Edges, api.Edge{From: nodes[i-1], To: node})
		}
	}
	return b
}

// FanOut adds an edge from one node to each of the given successors.
func (b *GraphBuilder) FanOut(from string, tos ...string) *GraphBuilder {
	for _, to := range tos {
		b.Edge(from, to)
	}
	return b
}

// FanIn adds an edge from each of the given predecessors to one node. The
// order of froms is the merge tie-break order at the join.
func (b *GraphBuilder) FanIn(to string, froms ...string) *GraphBuilder {
	for _, from := range froms {
		b.Edge(from, to)
	}
	return b
}

// Router attaches a router function to a node. The node must have no
// static outgoing edges; Validate enforces that on Register.
func (b *GraphBuilder) Router(node string, fn RouterFunc) *GraphBuilder {
	if fn == nil {
		panic(fmt.Sprintf("grafo: router on %q is nil", node))
	}
	b.declare(node)
	b.def.Routers[node] = fn
	return b
}

// declare records a node the first time it is mentioned. The first node
// declared becomes the default entry.
func (b *GraphBuilder) declare(name string) {
	if name == "" {
		panic("grafo: node name must not be empty")
	}
	if b.def.HasNode(name) {
		return
	}
	b.def.Nodes = append(b.def.Nodes, name)
	if b.def.Entry == "" {
		b.def.Entry = name
	}
}

// Register registers the built graph with the given engine.
func (b *GraphBuilder) Register(eng Engine) error {
	return eng.RegisterGraph(b.def)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *GraphBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}
