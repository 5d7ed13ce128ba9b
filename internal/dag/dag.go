// Package dag provides the directed acyclic graph over definition-file
// imports. It supports cycle detection with full path reporting and a
// deterministic topological sort.
package dag

import (
	"fmt"
	"sort"

	"github.com/matchday-labs/protodrive/pkg/core"
)

// Node represents one definition file in the graph.
type Node struct {
	// ID is the logical name of the definition file.
	ID string
	// File is the discovered definition file record.
	File *core.DefinitionFile
}

// Graph represents the import graph. Edges point from an imported file
// (dependency) to its importer (dependent). A graph is built once per run
// and is read-only afterwards, so it may be shared across parallel jobs.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // dependency -> dependents
	parents map[string][]string // dependent -> dependencies
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node for a definition file.
func (g *Graph) AddNode(id string, file *core.DefinitionFile) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node{ID: id, File: file}
		g.edges[id] = []string{}
		g.parents[id] = []string{}
		return
	}
	g.nodes[id].File = file
}

// AddEdge records that childID imports parentID.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return &core.CyclicDependencyError{Cycle: []string{parentID, childID}}
	}
	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by logical name.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// Imports returns the dependencies of a node, name-ascending.
func (g *Graph) Imports(id string) []string {
	return sortedCopy(g.parents[id])
}

// ImportedBy returns the dependents of a node, name-ascending.
func (g *Graph) ImportedBy(id string) []string {
	return sortedCopy(g.edges[id])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Roots returns nodes with no imports, name-ascending. Every acyclic graph
// with at least one node has at least one root.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Traversal colors for the depth-first sort.
type color uint8

const (
	white color = iota // unvisited
	grey               // in progress
	black              // done
)

// TopologicalSort returns the nodes in processing order: every file appears
// after all files it imports. The order is deterministic for identical
// inputs, with ties broken by logical name ascending.
//
// A cycle aborts the sort with a *core.CyclicDependencyError carrying the
// full cycle path.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	colors := make(map[string]color, len(g.nodes))
	order := make([]*Node, 0, len(g.nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = grey
		stack = append(stack, id)

		for _, dep := range sortedCopy(g.parents[id]) {
			switch colors[dep] {
			case grey:
				return &core.CyclicDependencyError{Cycle: closeCycle(stack, dep)}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		order = append(order, g.nodes[id])
		return nil
	}

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

// closeCycle slices the traversal stack from the first occurrence of start
// and closes the loop, producing e.g. [a b a].
func closeCycle(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			cycle := make([]string, 0, len(stack)-i+1)
			cycle = append(cycle, stack[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
