// Package flow implements the immutable flow graph built once from a
// workflow's `flows:` declarations.
package flow

import (
	"sort"

	"github.com/nika/nika/engine/core"
)

// Edge is one expanded (source, target) pair. A Flow whose endpoints are
// lists expands to the cross-product of Edges before reaching Graph.
type Edge struct {
	Source string
	Target string
}

// Graph is the immutable adjacency representation of a task DAG.
type Graph struct {
	nodes   map[string]bool
	forward map[string][]string
	reverse map[string][]string
}

// New builds a Graph from the declared task ids and expanded edges. An edge
// referencing an id absent from taskIDs is a construction-time error.
func New(taskIDs []string, edges []Edge) (*Graph, error) {
	nodes := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		nodes[id] = true
	}
	g := &Graph{
		nodes:   nodes,
		forward: make(map[string][]string),
		reverse: make(map[string][]string),
	}
	for _, e := range edges {
		if !nodes[e.Source] {
			return nil, unknownNode(e.Source)
		}
		if !nodes[e.Target] {
			return nil, unknownNode(e.Target)
		}
		g.forward[e.Source] = append(g.forward[e.Source], e.Target)
		g.reverse[e.Target] = append(g.reverse[e.Target], e.Source)
	}
	for _, adj := range g.forward {
		sort.Strings(adj)
	}
	for _, adj := range g.reverse {
		sort.Strings(adj)
	}
	return g, nil
}

// Spec is one `flows:` entry with endpoints already normalized to lists
// (a scalar endpoint becomes a single-element list upstream, during YAML
// decode). ExpandFlows turns it into the cross-product of Edges.
type Spec struct {
	Source []string
	Target []string
}

// ExpandFlows turns every Spec's scalar-or-array endpoints into the full
// cross-product of edges.
func ExpandFlows(specs []Spec) []Edge {
	var edges []Edge
	for _, spec := range specs {
		for _, s := range spec.Source {
			for _, t := range spec.Target {
				edges = append(edges, Edge{Source: s, Target: t})
			}
		}
	}
	return edges
}

func unknownNode(id string) error {
	return core.NewErrorf(
		core.CodeUnknownFlowNode,
		map[string]any{"task_id": id},
		"flow references task %q which is not declared in tasks:", id,
	)
}

// HasPath reports whether v is reachable from u via forward adjacency
// (u == v counts as reachable, the trivial zero-length path).
func (g *Graph) HasPath(u, v string) bool {
	if u == v {
		return true
	}
	visited := map[string]bool{u: true}
	queue := []string{u}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.forward[cur] {
			if next == v {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Dependencies returns the direct predecessors of v (reverse adjacency).
func (g *Graph) Dependencies(v string) []string {
	return append([]string(nil), g.reverse[v]...)
}

// FinalTasks returns every node with no outgoing edges, sorted.
func (g *Graph) FinalTasks() []string {
	var out []string
	for id := range g.nodes {
		if len(g.forward[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// color states for the three-color DFS cycle detector.
const (
	white = iota
	gray
	black
)

// DetectCycles reports the first cycle found (as a node-id path ending back
// at its start) via three-color DFS. Returns (nil, false) when acyclic.
func (g *Graph) DetectCycles() ([]string, bool) {
	colors := make(map[string]int, len(g.nodes))
	var ids []string
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var stack []string
	var cycle []string
	var visit func(string) bool
	visit = func(node string) bool {
		colors[node] = gray
		stack = append(stack, node)
		for _, next := range g.forward[node] {
			switch colors[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				idx := indexOf(stack, next)
				cycle = append(append([]string(nil), stack[idx:]...), next)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		colors[node] = black
		return false
	}

	for _, id := range ids {
		if colors[id] == white {
			if visit(id) {
				return cycle, true
			}
		}
	}
	return nil, false
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
