// Package dag provides a small directed acyclic graph used to order pipeline stages.
// It supports cycle detection, topological ordering and execution levels.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Node is a vertex in the graph carrying a typed payload.
type Node[T any] struct {
	// ID is the unique stage identifier
	ID string
	// Data holds the stage payload
	Data T
	// seq is the insertion position, used as the ordering tie-breaker
	seq int
}

// Graph is a directed acyclic graph of stages.
type Graph[T any] struct {
	nodes   map[string]*Node[T]
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
	next    int
}

// NewGraph creates a new empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		nodes:   make(map[string]*Node[T]),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph, replacing the payload if the node exists.
func (g *Graph[T]) AddNode(id string, data T) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node[T]{ID: id, Data: data, seq: g.next}
	g.next++
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph[T]) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph[T]) GetNode(id string) (*Node[T], bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node.
func (g *Graph[T]) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the children (dependents) of a node.
func (g *Graph[T]) GetChildren(id string) []string {
	return g.edges[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph[T]) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// ids returns node IDs in insertion order.
func (g *Graph[T]) ids() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.nodes[out[i]].seq < g.nodes[out[j]].seq
	})
	return out
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph[T]) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.ids() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// TopologicalSort returns nodes with dependencies before dependents.
// Independent nodes keep their insertion order.
func (g *Graph[T]) TopologicalSort() ([]*Node[T], error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	visited := make(map[string]bool)
	result := make([]*Node[T], 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parentID := range g.parents[id] {
			visit(parentID)
		}
		result = append(result, g.nodes[id])
	}

	for _, id := range g.ids() {
		visit(id)
	}
	return result, nil
}

// GetExecutionLevels returns node IDs grouped by level.
// Level 0 holds nodes with no dependencies; level N depends only on levels below N.
func (g *Graph[T]) GetExecutionLevels() ([][]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	assigned := make(map[string]int, len(order))
	var levels [][]string
	for _, n := range order {
		level := 0
		for _, p := range g.parents[n.ID] {
			if assigned[p]+1 > level {
				level = assigned[p] + 1
			}
		}
		assigned[n.ID] = level
		for len(levels) <= level {
			levels = append(levels, []string{})
		}
		levels[level] = append(levels[level], n.ID)
	}
	return levels, nil
}

// GetRoots returns nodes with no parents.
func (g *Graph[T]) GetRoots() []string {
	var roots []string
	for _, id := range g.ids() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}
