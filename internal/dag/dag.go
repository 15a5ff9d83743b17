// SPDX-License-Identifier: MPL-2.0

// Package dag orders string-keyed nodes and reports cycles. kiln uses it to
// validate scope "extends" declarations and to order multi-project builds so
// that a project is always loaded after the projects it depends on.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle. Cycle lists the
	// nodes along one concrete cycle, with the first node repeated at the end.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph. An edge from A to B means A must be handled
	// before B.
	Graph struct {
		adjacency map[string][]string
		// nodes keeps insertion order for deterministic output.
		nodes   []string
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds from -> to, creating both nodes when needed. Repeated edges
// are stored once.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// HasNode reports whether name was added.
func (g *Graph) HasNode(name string) bool { return g.nodeSet[name] }

// Successors returns the direct successors of name in insertion order.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopologicalSort returns an order in which every node precedes its
// successors, using Kahn's algorithm. Nodes at the same level keep insertion
// order. A cyclic graph yields a *CycleError naming one cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		remaining := make(map[string]bool)
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				remaining[node] = true
			}
		}
		return nil, &CycleError{Cycle: g.findCycle(remaining)}
	}

	return result, nil
}

// findCycle walks the nodes Kahn's algorithm could not release and returns
// the first closed path it meets. Every such node has a predecessor inside
// the set, so following predecessors must revisit a node.
func (g *Graph) findCycle(remaining map[string]bool) []string {
	predecessor := make(map[string]string, len(remaining))
	for _, from := range g.nodes {
		if !remaining[from] {
			continue
		}
		for _, to := range g.adjacency[from] {
			if remaining[to] {
				if _, ok := predecessor[to]; !ok {
					predecessor[to] = from
				}
			}
		}
	}

	var start string
	for _, node := range g.nodes {
		if remaining[node] {
			start = node
			break
		}
	}

	position := make(map[string]int)
	var walk []string
	for node := start; ; node = predecessor[node] {
		if at, seen := position[node]; seen {
			cycle := slices.Clone(walk[at:])
			slices.Reverse(cycle)
			return append(cycle, cycle[0])
		}
		position[node] = len(walk)
		walk = append(walk, node)
	}
}
