package decompose

import (
	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/extract"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// NodeID addresses a model within its arena.
type NodeID int

// NoNode is the zero value for "no model".
const NoNode NodeID = -1

// Model is one node of a decomposition: the main query or a sub-query.
type Model struct {
	ID           NodeID
	Kind         core.ModelKind
	Name         string
	Quoted       bool // name was written as a quoted identifier
	Body         string
	Columns      []string
	Recursive    bool
	Materialized extract.Materialization
	// Refs are all relation names the body references, self excluded.
	Refs []string
	// Deps are the direct dependencies, in order of first reference.
	Deps []NodeID
}

// Arena owns the models of one decomposition. Edges are index lists into
// the arena, so the graph is a plain value rebuilt per call.
type Arena struct {
	models []Model
	byKey  map[string]NodeID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{byKey: make(map[string]NodeID)}
}

// Add appends a model and returns its ID. Sub-query names are indexed for
// lookup; the main model is not, so it never shadows a sub-query.
func (a *Arena) Add(m Model) NodeID {
	id := NodeID(len(a.models))
	m.ID = id
	a.models = append(a.models, m)
	if m.Kind == core.ModelSub {
		a.byKey[core.NormalizeName(m.Name)] = id
	}
	return id
}

// Link records that from depends on to. Duplicate edges are ignored.
func (a *Arena) Link(from, to NodeID) {
	m := &a.models[from]
	for _, d := range m.Deps {
		if d == to {
			return
		}
	}
	m.Deps = append(m.Deps, to)
}

// Model returns the model with the given ID.
func (a *Arena) Model(id NodeID) *Model {
	if id < 0 || int(id) >= len(a.models) {
		return nil
	}
	return &a.models[id]
}

// Lookup finds a sub-query model by name.
func (a *Arena) Lookup(name string) (NodeID, bool) {
	id, ok := a.byKey[core.NormalizeName(name)]
	return id, ok
}

// Len returns the number of models.
func (a *Arena) Len() int {
	return len(a.models)
}

// DependencyNames returns the names of the direct dependencies of id.
func (a *Arena) DependencyNames(id NodeID) []string {
	m := a.Model(id)
	if m == nil || len(m.Deps) == 0 {
		return nil
	}
	names := make([]string, len(m.Deps))
	for i, d := range m.Deps {
		names[i] = a.models[d].Name
	}
	return names
}

// Adjacency returns the sub-query graph as name -> dependency names.
func (a *Arena) Adjacency() dag.Adjacency {
	adj := make(dag.Adjacency)
	for i := range a.models {
		if a.models[i].Kind == core.ModelSub {
			adj[a.models[i].Name] = a.DependencyNames(NodeID(i))
		}
	}
	return adj
}

// Graph builds a dag.Graph over the sub-query models.
func (a *Arena) Graph() *dag.Graph {
	g := dag.NewGraph()
	for i := range a.models {
		if a.models[i].Kind == core.ModelSub {
			g.AddNode(a.models[i].Name, nil)
		}
	}
	for i := range a.models {
		m := &a.models[i]
		if m.Kind != core.ModelSub {
			continue
		}
		for _, d := range m.Deps {
			// self references never reach the arena
			_ = g.AddEdge(a.models[d].Name, m.Name)
		}
	}
	return g
}
