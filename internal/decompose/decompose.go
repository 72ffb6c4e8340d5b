// Package decompose splits a statement with a WITH block into a main model
// and one model per sub-query, wired by dependency edges.
package decompose

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/extract"
	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// DefaultMainName names the main model when the caller gives no name.
const DefaultMainName = "main"

// Decomposition is the result of Decompose. It holds exactly one main model.
type Decomposition struct {
	*Arena
	Main NodeID
	// Recursive is set when the source used WITH RECURSIVE.
	Recursive bool

	resolver *dag.Resolver
}

// MainModel returns the main model.
func (d *Decomposition) MainModel() *Model {
	return d.Model(d.Main)
}

// Subs returns the sub-query models in source order.
func (d *Decomposition) Subs() []*Model {
	subs := make([]*Model, 0, d.Len()-1)
	for i := 0; i < d.Len(); i++ {
		if m := d.Model(NodeID(i)); m.Kind == core.ModelSub {
			subs = append(subs, m)
		}
	}
	return subs
}

// ExecutionOrder returns sub-query names, dependencies first. The walk
// starts from the sub-queries nothing else depends on, so every dependency
// chain is measured against the resolver's depth bound in full.
func (d *Decomposition) ExecutionOrder() ([]string, error) {
	subs := d.Subs()
	used := make(map[NodeID]bool, len(subs))
	for _, m := range subs {
		for _, dep := range m.Deps {
			used[dep] = true
		}
	}
	requested := make([]string, 0, 2*len(subs))
	for _, m := range subs {
		if !used[m.ID] {
			requested = append(requested, m.Name)
		}
	}
	// sub-queries on a cycle have no root above them
	for _, m := range subs {
		requested = append(requested, m.Name)
	}
	return d.Resolver().TopologicalOrder(requested, d.Adjacency())
}

// Resolver returns the resolver that orders this decomposition.
func (d *Decomposition) Resolver() *dag.Resolver {
	if d.resolver == nil {
		d.resolver = dag.NewResolver()
	}
	return d.resolver
}

// Entities converts the sub-query models into the flat entities that make
// up a workspace's private pool. Each entity keeps every relation name its
// body references, not only its siblings, so that sub-queries authored
// later in the workspace are seen as dependencies.
func (d *Decomposition) Entities() []*core.Entity {
	now := time.Now().UTC()
	subs := d.Subs()
	entities := make([]*core.Entity, 0, len(subs))
	for _, m := range subs {
		cols, _ := scanner.OutputColumns(m.Body) // best effort
		entities = append(entities, &core.Entity{
			Name:          m.Name,
			Body:          m.Body,
			Dependencies:  append([]string(nil), m.Refs...),
			Columns:       append([]string(nil), m.Columns...),
			OutputColumns: cols,
			Recursive:     m.Recursive,
			Quoted:        m.Quoted,
			UpdatedAt:     now,
		})
	}
	return entities
}

// Config holds Decomposer options.
type Config struct {
	Scanner *scanner.Scanner
	// Resolver orders sub-queries and bounds dependency chains.
	Resolver *dag.Resolver
	Logger   *slog.Logger
}

// Decomposer turns SQL text into a Decomposition.
type Decomposer struct {
	scanner  *scanner.Scanner
	resolver *dag.Resolver
	logger   *slog.Logger
}

// New creates a Decomposer.
func New(cfg Config) *Decomposer {
	d := &Decomposer{scanner: cfg.Scanner, resolver: cfg.Resolver, logger: cfg.Logger}
	if d.scanner == nil {
		d.scanner = scanner.New()
	}
	if d.resolver == nil {
		d.resolver = dag.NewResolver()
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Decompose splits sql into a main model named modelName and its sub-query
// models. Dependencies of each body are restricted to names defined in the
// same WITH block, and forward references between siblings are allowed.
// Any syntax error or dependency cycle fails the whole call.
func (d *Decomposer) Decompose(sql, modelName string) (*Decomposition, error) {
	if modelName == "" {
		modelName = DefaultMainName
	}

	ext, err := extract.Extract(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to extract sub-queries: %w", err)
	}

	arena := NewArena()
	result := &Decomposition{Arena: arena, Recursive: ext.Recursive, resolver: d.resolver}

	// first pass: every sibling exists before any edge is wired
	for _, def := range ext.Definitions {
		arena.Add(Model{
			Kind:         core.ModelSub,
			Name:         def.Name,
			Quoted:       def.Quoted,
			Body:         def.Body,
			Columns:      def.Columns,
			Materialized: def.Materialized,
		})
	}
	result.Main = arena.Add(Model{Kind: core.ModelMain, Name: modelName, Body: ext.Remainder})

	// second pass: wire edges
	for i := 0; i < arena.Len(); i++ {
		m := arena.Model(NodeID(i))
		if err := d.wire(arena, m, ext.Recursive); err != nil {
			return nil, err
		}
	}

	if _, err := result.ExecutionOrder(); err != nil {
		return nil, err
	}

	d.logger.Debug("decomposed statement",
		"model", modelName,
		"sub_queries", len(ext.Definitions),
		"recursive", ext.Recursive)
	return result, nil
}

func (d *Decomposer) wire(arena *Arena, m *Model, recursive bool) error {
	names, err := d.scanner.Scan(m.Body)
	if err != nil {
		return fmt.Errorf("failed to scan dependencies of %q: %w", m.Name, err)
	}
	self := core.NormalizeName(m.Name)
	for _, name := range names {
		if m.Kind == core.ModelSub && core.NormalizeName(name) == self {
			// a self reference is the recursive term, not an edge
			m.Recursive = recursive
			continue
		}
		m.Refs = append(m.Refs, name)
		if dep, ok := arena.Lookup(name); ok {
			arena.Link(m.ID, dep)
		}
	}
	return nil
}

// Rebuild reconstructs a decomposition from a flat entity pool and a main
// body. This is the on-demand graph rebuild used before composing a stored
// workspace. Edges come from the stored dependencies of each entity.
func (d *Decomposer) Rebuild(mainName, mainBody string, entities []*core.Entity) (*Decomposition, error) {
	if mainName == "" {
		mainName = DefaultMainName
	}
	arena := NewArena()
	result := &Decomposition{Arena: arena, resolver: d.resolver}
	for _, e := range entities {
		arena.Add(Model{
			Kind:      core.ModelSub,
			Name:      e.Name,
			Quoted:    e.Quoted,
			Body:      e.Body,
			Columns:   e.Columns,
			Recursive: e.Recursive,
			Refs:      append([]string(nil), e.Dependencies...),
		})
		result.Recursive = result.Recursive || e.Recursive
	}
	for i, e := range entities {
		for _, name := range e.Dependencies {
			if dep, ok := arena.Lookup(name); ok && dep != NodeID(i) {
				arena.Link(NodeID(i), dep)
			}
		}
	}
	result.Main = arena.Add(Model{Kind: core.ModelMain, Name: mainName, Body: mainBody})
	if err := d.wire(arena, arena.Model(result.Main), false); err != nil {
		return nil, err
	}

	if _, err := result.ExecutionOrder(); err != nil {
		return nil, err
	}
	return result, nil
}
