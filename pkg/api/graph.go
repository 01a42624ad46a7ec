package api

import (
	"errors"
	"fmt"
)

// End is the pseudo-node a router returns to terminate its path.
const End = "__end__"

// RouterFunc selects the single next node after a conditional branch point.
// It must be a pure function of the state: given identical state it returns
// the same name. The returned name must be a declared node or End.
type RouterFunc func(state *State) string

// Edge is an unconditional dependency between two nodes: To may not run
// until From has completed, and From completing contributes to To becoming
// runnable.
type Edge struct {
	From string
	To   string
}

// Graph validation errors.
var (
	ErrNoEntry        = errors.New("graph: entry node not set")
	ErrUnknownNode    = errors.New("graph: unknown node")
	ErrDuplicateNode  = errors.New("graph: duplicate node")
	ErrSelfEdge       = errors.New("graph: edge from node to itself")
	ErrDuplicateEdge  = errors.New("graph: duplicate edge")
	ErrRouterConflict = errors.New("graph: router node also has static successors")
	ErrUnreachable    = errors.New("graph: node unreachable from entry")
	ErrCycle          = errors.New("graph: static edges form a cycle")
)

// GraphDefinition is the static shape of a pipeline: named nodes,
// unconditional edges, and router functions on conditional branch points.
// Definitions are built once at startup and are immutable during execution.
//
// Node names refer to steps in the engine's registry; the definition itself
// holds no step functions. Edge order matters: when parallel predecessors of
// a join wrote the same Data key, the value from the predecessor whose edge
// into the join was declared last wins.
type GraphDefinition struct {
	Name  string
	Entry string
	Nodes []string
	Edges []Edge

	// Routers maps a node name to the function that picks its successor.
	// A node with a router must have no static outgoing edges, and a
	// router must not target a node with static in-edges: a join is
	// scheduled only by its own predecessors completing. Routing to such
	// a node fails the run with an InvalidRouteError.
	Routers map[string]RouterFunc
}

// HasNode reports whether name is a declared node.
func (g *GraphDefinition) HasNode(name string) bool {
	for _, n := range g.Nodes {
		if n == name {
			return true
		}
	}
	return false
}

// Predecessors returns the nodes with a static edge into name, in edge
// declaration order. The order is the documented merge tie-break order.
func (g *GraphDefinition) Predecessors(name string) []string {
	var preds []string
	for _, e := range g.Edges {
		if e.To == name {
			preds = append(preds, e.From)
		}
	}
	return preds
}

// Successors returns the nodes with a static edge out of name, in edge
// declaration order.
func (g *GraphDefinition) Successors(name string) []string {
	var succs []string
	for _, e := range g.Edges {
		if e.From == name {
			succs = append(succs, e.To)
		}
	}
	return succs
}

// Validate checks the structural invariants of the definition:
//
//   - a non-empty name and a declared entry node
//   - node names unique and non-empty
//   - edges connect declared nodes, without self-loops or duplicates
//   - router nodes have no static successors
//   - every node reachable from the entry (router targets are not statically
//     known, so when a reachable node carries a router the check is
//     satisfied for all remaining nodes)
//   - no cycle among static edges, which could never become runnable under
//     wait-for-all-predecessors joins
func (g *GraphDefinition) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("graph: name is required")
	}
	if g.Entry == "" {
		return ErrNoEntry
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n == "" {
			return fmt.Errorf("graph %q: node name is empty", g.Name)
		}
		if n == End {
			return fmt.Errorf("%w: %q is reserved", ErrDuplicateNode, End)
		}
		if seen[n] {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n)
		}
		seen[n] = true
	}

	if !seen[g.Entry] {
		return fmt.Errorf("%w: entry %s", ErrUnknownNode, g.Entry)
	}

	edges := make(map[Edge]bool, len(g.Edges))
	for _, e := range g.Edges {
		if !seen[e.From] {
			return fmt.Errorf("%w: edge from %s", ErrUnknownNode, e.From)
		}
		if !seen[e.To] {
			return fmt.Errorf("%w: edge to %s", ErrUnknownNode, e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("%w: %s", ErrSelfEdge, e.From)
		}
		if edges[e] {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, e.From, e.To)
		}
		edges[e] = true
	}

	for name := range g.Routers {
		if !seen[name] {
			return fmt.Errorf("%w: router on %s", ErrUnknownNode, name)
		}
		if len(g.Successors(name)) > 0 {
			return fmt.Errorf("%w: %s", ErrRouterConflict, name)
		}
	}

	if err := g.checkReachable(); err != nil {
		return err
	}
	return g.checkAcyclic()
}

// checkReachable walks static edges from the entry. Router targets are
// runtime values, so once the walk hits a node carrying a router every node
// is treated as reachable.
func (g *GraphDefinition) checkReachable() error {
	reached := map[string]bool{g.Entry: true}
	queue := []string{g.Entry}
	routerSeen := false

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, ok := g.Routers[n]; ok {
			routerSeen = true
		}
		for _, succ := range g.Successors(n) {
			if !reached[succ] {
				reached[succ] = true
				queue = append(queue, succ)
			}
		}
	}

	if routerSeen {
		return nil
	}
	for _, n := range g.Nodes {
		if !reached[n] {
			return fmt.Errorf("%w: %s", ErrUnreachable, n)
		}
	}
	return nil
}

// checkAcyclic runs a depth-first search over static edges with the usual
// permanent / temporary marking.
func (g *GraphDefinition) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(g.Nodes))

	var visit func(n string) error
	visit = func(n string) error {
		switch mark[n] {
		case visiting:
			return fmt.Errorf("%w: at %s", ErrCycle, n)
		case done:
			return nil
		}
		mark[n] = visiting
		for _, succ := range g.Successors(n) {
			if err := visit(succ); err != nil {
				return err
			}
		}
		mark[n] = done
		return nil
	}

	for _, n := range g.Nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Frozen returns a copy with fresh slices and router map so a registered
// graph cannot be mutated through the caller's definition afterwards.
func (g *GraphDefinition) Frozen() GraphDefinition {
	c := GraphDefinition{
		Name:  g.Name,
		Entry: g.Entry,
		Nodes: make([]string, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(c.Nodes, g.Nodes)
	copy(c.Edges, g.Edges)
	if g.Routers != nil {
		c.Routers = make(map[string]RouterFunc, len(g.Routers))
		for k, v := range g.Routers {
			c.Routers[k] = v
		}
	}
	return c
}
