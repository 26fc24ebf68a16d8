// Package graph implements the directed reference graph over entity names:
// cycle detection, topological ordering, and dependency depth. It is
// self-contained on purpose; the same structure the validator checks is the
// one the generation coordinator walks.
package graph

import (
	"fmt"
	"strings"
)

// Graph is a directed graph of entity references. An edge a→b means entity a
// declares a foreign key into entity b, so b must be materialized before a.
type Graph struct {
	order []string            // node insertion order, drives determinism
	nodes map[string]bool
	succ  map[string][]string // adjacency in edge direction
	edges map[[2]string]bool  // dedupe: multiple fks to one target are one edge
}

// New creates a graph with the given nodes. Node order is remembered and used
// as the tie-break for topological ordering.
func New(nodes []string) *Graph {
	g := &Graph{
		nodes: make(map[string]bool, len(nodes)),
		succ:  make(map[string][]string),
		edges: make(map[[2]string]bool),
	}
	for _, n := range nodes {
		g.addNode(n)
	}
	return g
}

func (g *Graph) addNode(n string) {
	if !g.nodes[n] {
		g.nodes[n] = true
		g.order = append(g.order, n)
	}
}

// AddEdge records a reference from one entity to another. Unknown endpoints
// are added as nodes. Self-edges are kept (a self-reference is legal) but
// excluded from cycle detection and ordering constraints.
func (g *Graph) AddEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	key := [2]string{from, to}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.succ[from] = append(g.succ[from], to)
}

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// HasEdge reports whether the graph contains the given edge.
func (g *Graph) HasEdge(from, to string) bool {
	return g.edges[[2]string{from, to}]
}

// visit states for the cycle-detection DFS.
const (
	white = iota // unvisited
	gray         // on the current DFS path
	black        // fully explored
)

// DetectCycles finds all cycles reachable in the graph using a white/gray/
// black DFS. Each cycle is returned as the sequence of entity names forming
// the loop. Self-edges are skipped. Output order is deterministic given the
// same node and edge insertion order.
func (g *Graph) DetectCycles() [][]string {
	state := make(map[string]int, len(g.order))
	var cycles [][]string
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		state[node] = gray
		path = append(path, node)

		for _, next := range g.succ[node] {
			if next == node {
				continue
			}
			switch state[next] {
			case white:
				dfs(next)
			case gray:
				// Back edge: the cycle is the path suffix starting at next.
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		state[node] = black
	}

	for _, n := range g.order {
		if state[n] == white {
			dfs(n)
		}
	}
	return cycles
}

// TopologicalOrder returns the nodes ordered so that every entity appears
// after all entities it references. Ties are broken by node insertion order,
// keeping output stable across runs with identical input. Returns a
// *CycleError when the graph is not a DAG.
func (g *Graph) TopologicalOrder() ([]string, error) {
	// Remaining dependency count per node, ignoring self-edges.
	remaining := make(map[string]int, len(g.order))
	for _, n := range g.order {
		for _, next := range g.succ[n] {
			if next != n {
				remaining[n]++
			}
		}
	}

	done := make(map[string]bool, len(g.order))
	ordered := make([]string, 0, len(g.order))

	for len(ordered) < len(g.order) {
		// Pick the earliest-declared ready node, then rescan from the top:
		// releasing a node can make an earlier-declared one ready, and that
		// one must come out next.
		picked := ""
		for _, n := range g.order {
			if done[n] || remaining[n] > 0 {
				continue
			}
			picked = n
			break
		}
		if picked != "" {
			done[picked] = true
			ordered = append(ordered, picked)
			// Releasing the node satisfies one dependency of every
			// predecessor.
			for e := range g.edges {
				if e[1] == picked && e[0] != picked && !done[e[0]] {
					remaining[e[0]]--
				}
			}
		} else {
			cycles := g.DetectCycles()
			if len(cycles) > 0 {
				return nil, &CycleError{Cycle: cycles[0]}
			}
			return nil, &CycleError{Cycle: unordered(g.order, done)}
		}
	}
	return ordered, nil
}

func unordered(order []string, done map[string]bool) []string {
	var out []string
	for _, n := range order {
		if !done[n] {
			out = append(out, n)
		}
	}
	return out
}

// MaxDepth returns the length of the longest directed path starting at the
// given node, following reference edges. Self-edges do not contribute. On a
// cyclic graph the walk stops at repeated nodes, so callers should only rely
// on the value after cycle detection passes.
func (g *Graph) MaxDepth(from string) int {
	memo := make(map[string]int)
	onPath := make(map[string]bool)

	var walk func(node string) int
	walk = func(node string) int {
		if d, ok := memo[node]; ok {
			return d
		}
		if onPath[node] {
			return 0
		}
		onPath[node] = true
		best := 0
		for _, next := range g.succ[node] {
			if next == node {
				continue
			}
			if d := 1 + walk(next); d > best {
				best = d
			}
		}
		onPath[node] = false
		memo[node] = best
		return best
	}
	return walk(from)
}

// CycleError indicates the reference graph contains a cycle and therefore
// has no valid generation order.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "circular reference detected"
	}
	return fmt.Sprintf("circular reference: %s -> %s",
		strings.Join(e.Cycle, " -> "), e.Cycle[0])
}
