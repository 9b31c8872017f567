// Package dag builds and topologically layers the dependency graph the
// Resource Registry derives from a resource set's DependencyRefs, and the
// Planner derives over the union of desired and current resource sets.
package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opnforge/opnforge/pkg/engine"
)

// Node is one resource in the graph, identified by its logical id.
type Node struct {
	ID           string
	Dependencies []string // hard + reference edges this node requires
	Dependents   []string
	Level        int
}

// Graph is the built, acyclic dependency graph over a resource set.
type Graph struct {
	Nodes map[string]*Node
	Roots []string
	Depth int

	// adjacency maps a node id to the ids of nodes that depend on it
	// (edges point from a dependency to its dependents).
	adjacency map[string][]string
	levels    [][]string
}

// Builder accumulates nodes and edges before producing an acyclic Graph.
type Builder struct {
	nodes     map[string]*Node
	adjacency map[string][]string
	reverse   map[string][]string
	inDegree  map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]string),
		reverse:   make(map[string][]string),
		inDegree:  make(map[string]int),
	}
}

// AddNode registers a resource id with the builder. Calling it more than once
// for the same id is a no-op (the union of desired/current resource sets may
// name the same id from both sides).
func (b *Builder) AddNode(id string) {
	if _, exists := b.nodes[id]; exists {
		return
	}
	b.nodes[id] = &Node{ID: id}
	b.adjacency[id] = nil
	b.reverse[id] = nil
	b.inDegree[id] = 0
}

// AddEdge records that id depends on targetID: targetID must be scheduled in
// an earlier or equal wave. Edges to ids never registered with AddNode are
// rejected by Build, so every dependency must name a node of the same graph;
// references to pre-existing appliance objects are not filtered out by any
// caller and fail here too.
func (b *Builder) AddEdge(id, targetID string) {
	if id == targetID {
		return
	}
	b.reverse[id] = append(b.reverse[id], targetID)
	b.adjacency[targetID] = append(b.adjacency[targetID], id)
	b.inDegree[id]++
}

// Build detects cycles, computes topological levels, and returns the graph.
// Per I2 the dependency graph must be a DAG; a cycle is reported as a
// CycleError naming every participant (P7), and the function never hangs
// regardless of input shape.
func (b *Builder) Build() (*Graph, error) {
	if len(b.nodes) == 0 {
		return &Graph{Nodes: map[string]*Node{}, adjacency: map[string][]string{}}, nil
	}

	for id, deps := range b.reverse {
		for _, dep := range deps {
			if _, ok := b.nodes[dep]; !ok {
				return nil, engine.NewUnresolvedReferenceError(
					fmt.Sprintf("resource %s depends on unknown resource %s", id, dep), nil,
				).WithResource(id)
			}
		}
	}

	if cycle := b.detectCycle(); cycle != nil {
		return nil, engine.NewCycleError(cycle, fmt.Errorf("cycle: %s", strings.Join(cycle, " -> ")))
	}

	levels, err := b.computeLevels()
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Nodes:     make(map[string]*Node, len(b.nodes)),
		adjacency: b.adjacency,
		levels:    levels,
		Depth:     len(levels),
	}

	for level, ids := range levels {
		for _, id := range ids {
			node := &Node{
				ID:           id,
				Dependencies: append([]string(nil), b.reverse[id]...),
				Dependents:   append([]string(nil), b.adjacency[id]...),
				Level:        level,
			}
			g.Nodes[id] = node
			if level == 0 {
				g.Roots = append(g.Roots, id)
			}
		}
	}
	sort.Strings(g.Roots)

	return g, nil
}

// detectCycle runs DFS with a recursion stack; on finding a back edge it
// returns the cycle's participant ids (closed, i.e. first id repeated last).
func (b *Builder) detectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(b.nodes))
	path := make([]string, 0, len(b.nodes))

	ids := make([]string, 0, len(b.nodes))
	for id := range b.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)

		deps := append([]string(nil), b.reverse[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				start := -1
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string(nil), path[start:]...), dep)
				return true
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range ids {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// computeLevels runs Kahn's algorithm: wave k contains exactly the nodes
// whose predecessors all lie in waves < k. Ties within a wave are broken by
// ascending id for reproducible plans (P1).
func (b *Builder) computeLevels() ([][]string, error) {
	inDegree := make(map[string]int, len(b.inDegree))
	for id, d := range b.inDegree {
		inDegree[id] = d
	}

	var levels [][]string
	current := make([]string, 0)
	for id, d := range inDegree {
		if d == 0 {
			current = append(current, id)
		}
	}
	sort.Strings(current)

	processed := 0
	for len(current) > 0 {
		levels = append(levels, current)
		processed += len(current)

		nextSet := map[string]bool{}
		for _, id := range current {
			for _, dependent := range b.adjacency[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					nextSet[dependent] = true
				}
			}
		}
		next := make([]string, 0, len(nextSet))
		for id := range nextSet {
			next = append(next, id)
		}
		sort.Strings(next)
		current = next
	}

	if processed != len(b.nodes) {
		return nil, engine.NewPermanentError("topological sort did not cover all nodes", nil)
	}
	return levels, nil
}

// Levels returns the computed topological layering, index 0 first.
func (g *Graph) Levels() [][]string {
	return g.levels
}

// Reversed returns a new Graph with every edge direction flipped, used by the
// Planner to emit deletes in reverse topological order (leaves first).
func (g *Graph) Reversed() *Graph {
	rb := NewBuilder()
	for id := range g.Nodes {
		rb.AddNode(id)
	}
	for id, node := range g.Nodes {
		for _, dep := range node.Dependencies {
			// flip: in the reversed graph, dep depends on id
			rb.AddEdge(dep, id)
		}
	}
	reversed, err := rb.Build()
	if err != nil {
		// Reversing an already-validated DAG cannot introduce a cycle.
		panic(fmt.Sprintf("dag: reversing a valid graph produced an error: %v", err))
	}
	return reversed
}

// ToDOT renders the graph in Graphviz DOT format for debugging.
func (g *Graph) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph ExecutionGraph {\n")
	sb.WriteString("  rankdir=TB;\n  node [shape=box, style=rounded];\n\n")

	for level, ids := range g.levels {
		fmt.Fprintf(&sb, "  subgraph cluster_level_%d {\n", level)
		fmt.Fprintf(&sb, "    label=\"Wave %d\";\n    style=dashed;\n", level)
		for _, id := range ids {
			fmt.Fprintf(&sb, "    %q;\n", id)
		}
		sb.WriteString("  }\n\n")
	}

	for id, node := range g.Nodes {
		for _, dep := range node.Dependencies {
			fmt.Fprintf(&sb, "  %q -> %q;\n", dep, id)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
