// Package dag provides dependency graph operations over sub-query entities.
// It supports cycle detection with full paths, deterministic topological
// ordering, execution levels and impact analysis.
//
// Names are compared case-insensitively; the spelling of the first
// registration is kept for output.
package dag

import (
	"fmt"
	"slices"
	"sort"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Node represents an entity in the graph.
type Node struct {
	// ID is the normalized name
	ID string
	// Name is the display spelling
	Name string
	// Entity is nil for nodes added without one
	Entity *core.Entity
}

// Graph is a directed graph of entity dependencies. Edges point from a
// dependency to its consumers. Cycles can be represented so that they can
// be reported; ordering operations reject them.
type Graph struct {
	nodes   map[string]*Node
	order   []string            // insertion order of IDs
	edges   map[string][]string // dependency -> consumers
	parents map[string][]string // consumer -> dependencies
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph, replacing the entity of an existing one.
func (g *Graph) AddNode(name string, entity *core.Entity) {
	id := core.NormalizeName(name)
	if n, exists := g.nodes[id]; exists {
		n.Entity = entity
		return
	}
	g.nodes[id] = &Node{ID: id, Name: name, Entity: entity}
	g.order = append(g.order, id)
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge records that consumer depends on dependency.
func (g *Graph) AddEdge(dependency, consumer string) error {
	from, to := core.NormalizeName(dependency), core.NormalizeName(consumer)
	if _, exists := g.nodes[from]; !exists {
		return fmt.Errorf("dependency node %q does not exist", dependency)
	}
	if _, exists := g.nodes[to]; !exists {
		return fmt.Errorf("consumer node %q does not exist", consumer)
	}
	if from == to {
		return &core.CircularDependencyError{Cycle: []string{g.nodes[from].Name, g.nodes[from].Name}}
	}

	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
	if !slices.Contains(g.parents[to], from) {
		g.parents[to] = append(g.parents[to], from)
	}
	return nil
}

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[core.NormalizeName(name)]
	return n, ok
}

// Has reports whether name is a node of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[core.NormalizeName(name)]
	return ok
}

// Dependencies returns the direct dependencies of a node.
func (g *Graph) Dependencies(name string) []string {
	return g.names(g.parents[core.NormalizeName(name)])
}

// Dependents returns the direct consumers of a node.
func (g *Graph) Dependents(name string) []string {
	return g.names(g.edges[core.NormalizeName(name)])
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, consumers := range g.edges {
		count += len(consumers)
	}
	return count
}

// Adjacency returns the graph as a name -> dependency names map.
func (g *Graph) Adjacency() Adjacency {
	adj := make(Adjacency, len(g.nodes))
	for _, id := range g.order {
		adj[g.nodes[id].Name] = g.names(g.parents[id])
	}
	return adj
}

// FindCycle returns the first cycle found, as a path that starts and ends
// with the same name, or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	color := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range g.parents[id] {
			switch color[dep] {
			case white:
				if dfs(dep) {
					return true
				}
			case gray:
				cycle = cyclePath(stack, dep)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && dfs(id) {
			return g.names(cycle)
		}
	}
	return nil
}

// ExecutionLevels returns nodes grouped by depth. Level 0 holds nodes with
// no dependencies; a node at level N depends only on nodes below N.
func (g *Graph) ExecutionLevels() ([][]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &core.CircularDependencyError{Cycle: cycle}
	}

	assigned := make(map[string]int, len(g.nodes))
	var getLevel func(id string) int
	getLevel = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, dep := range g.parents[id] {
			if l := getLevel(dep) + 1; l > level {
				level = l
			}
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range g.order {
		if l := getLevel(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.order {
		levels[assigned[id]] = append(levels[assigned[id]], g.nodes[id].Name)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// AffectedNodes returns the given nodes and all of their transitive
// dependents, sorted.
func (g *Graph) AffectedNodes(names []string) []string {
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, consumer := range g.edges[id] {
			mark(consumer)
		}
	}
	for _, name := range names {
		if id := core.NormalizeName(name); g.nodes[id] != nil {
			mark(id)
		}
	}
	return g.sortedNames(affected)
}

// Upstream returns all transitive dependencies of a node, sorted.
func (g *Graph) Upstream(name string) []string {
	upstream := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, dep := range g.parents[id] {
			if !upstream[dep] {
				upstream[dep] = true
				mark(dep)
			}
		}
	}
	mark(core.NormalizeName(name))
	return g.sortedNames(upstream)
}

// Roots returns nodes without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, g.nodes[id].Name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes without dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			leaves = append(leaves, g.nodes[id].Name)
		}
	}
	sort.Strings(leaves)
	return leaves
}

func (g *Graph) names(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id].Name
	}
	return out
}

func (g *Graph) sortedNames(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, g.nodes[id].Name)
	}
	sort.Strings(out)
	return out
}

// DFS colors.
const (
	white = iota
	gray
	black
)

// cyclePath cuts the DFS stack at the first occurrence of target and closes
// the loop: stack [x a b], target a gives [a b a].
func cyclePath(stack []string, target string) []string {
	i := slices.Index(stack, target)
	path := append([]string(nil), stack[i:]...)
	return append(path, target)
}
