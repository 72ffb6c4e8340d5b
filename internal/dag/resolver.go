package dag

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// DefaultMaxDepth bounds the length of a dependency chain.
const DefaultMaxDepth = 64

// Adjacency maps an entity name to the names it depends on. Keys and
// values are compared case-insensitively.
type Adjacency map[string][]string

// BodyScanner returns the relation names a query body references.
type BodyScanner interface {
	Scan(body string) ([]string, error)
}

// BuildGraph builds the dependency graph of a pool. With a scanner, each
// body is scanned afresh; without one the stored dependencies are used.
// Only names of the pool become edges and self references are dropped.
func BuildGraph(entities []*core.Entity, sc BodyScanner) (*Graph, error) {
	g := NewGraph()
	for _, e := range entities {
		g.AddNode(e.Name, e)
	}
	for _, e := range entities {
		deps := e.Dependencies
		if sc != nil {
			var err error
			if deps, err = sc.Scan(e.Body); err != nil {
				return nil, fmt.Errorf("failed to scan %q: %w", e.Name, err)
			}
		}
		for _, dep := range deps {
			if !g.Has(dep) || core.NormalizeName(dep) == e.Key() {
				continue
			}
			if err := g.AddEdge(dep, e.Name); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// DependencyGraph returns the adjacency of a pool snapshot from the stored
// dependencies, restricted to in-pool names.
func DependencyGraph(pool core.Snapshot) Adjacency {
	g, _ := BuildGraph(pool.Entities(), nil) // cannot fail without a scanner
	return g.Adjacency()
}

// FindDependents returns the names whose dependencies include name, sorted.
func FindDependents(name string, adj Adjacency) []string {
	key := core.NormalizeName(name)
	var out []string
	for consumer, deps := range adj {
		if core.NormalizeName(consumer) == key {
			continue
		}
		for _, dep := range deps {
			if core.NormalizeName(dep) == key {
				out = append(out, consumer)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Resolver orders entities for composition.
type Resolver struct {
	maxDepth int
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth overrides the dependency chain bound.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TopologicalOrder returns the requested names and their transitive
// dependencies, dependencies first. Names that are not keys of adj are real
// tables and are left out. Visiting a name that is still on the DFS path
// fails with a *core.CircularDependencyError naming the whole cycle.
func (r *Resolver) TopologicalOrder(requested []string, adj Adjacency) ([]string, error) {
	type entry struct {
		name string
		deps []string
	}
	index := make(map[string]entry, len(adj))
	for name, deps := range adj {
		index[core.NormalizeName(name)] = entry{name: name, deps: deps}
	}

	color := make(map[string]int, len(index))
	var stack []string
	var order []string

	var visit func(key string) error
	visit = func(key string) error {
		e, ok := index[key]
		if !ok {
			return nil
		}
		switch color[key] {
		case black:
			return nil
		case gray:
			return &core.CircularDependencyError{Cycle: displayCycle(cyclePath(stack, key), func(k string) string { return index[k].name })}
		}
		if len(stack) >= r.maxDepth {
			return &core.DepthExceededError{Name: e.name, Limit: r.maxDepth}
		}

		color[key] = gray
		stack = append(stack, key)
		for _, dep := range e.deps {
			depKey := core.NormalizeName(dep)
			if depKey == key {
				continue
			}
			if err := visit(depKey); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[key] = black
		order = append(order, e.name)
		return nil
	}

	for _, name := range requested {
		if err := visit(core.NormalizeName(name)); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Resolution is the outcome of a two-pool resolution.
type Resolution struct {
	// Private entities in dependency order.
	Private []*core.Entity
	// Shared entities in dependency order. Shared entities may depend on
	// Private ones, never the other way round.
	Shared []*core.Entity
	// Unknown lists referenced names found in neither pool.
	Unknown []string
	// Bindings maps every resolved name (normalized) to the pool it came from.
	Bindings map[string]core.Binding
}

// Entities returns Private entries followed by Shared entries.
func (res *Resolution) Entities() []*core.Entity {
	out := make([]*core.Entity, 0, len(res.Private)+len(res.Shared))
	out = append(out, res.Private...)
	return append(out, res.Shared...)
}

// Empty reports whether nothing was resolved.
func (res *Resolution) Empty() bool {
	return len(res.Private) == 0 && len(res.Shared) == 0
}

// ResolveTwoPool resolves requested names through the Private -> Shared
// priority chain. A name is bound once per call: if Private has it, Shared
// is never consulted for that name. Dependencies of Private entities are
// looked up in Private only; dependencies of Shared entities go through the
// full chain.
func (r *Resolver) ResolveTwoPool(requested []string, private, shared core.Snapshot) (*Resolution, error) {
	res := &Resolution{Bindings: make(map[string]core.Binding)}
	color := make(map[string]int)
	unknown := make(map[string]bool)
	var stack []string

	bind := func(key string, privateOnly bool) (core.Binding, bool) {
		if b, ok := res.Bindings[key]; ok {
			if privateOnly && b.Kind != core.PoolPrivate {
				return core.Binding{}, false
			}
			return b, true
		}
		if e, ok := private.Lookup(key); ok {
			b := core.Binding{Kind: core.PoolPrivate, Entity: e}
			res.Bindings[key] = b
			return b, true
		}
		if privateOnly {
			return core.Binding{}, false
		}
		if e, ok := shared.Lookup(key); ok {
			b := core.Binding{Kind: core.PoolShared, Entity: e}
			res.Bindings[key] = b
			return b, true
		}
		return core.Binding{}, false
	}

	var visit func(name string, privateOnly bool) error
	visit = func(name string, privateOnly bool) error {
		key := core.NormalizeName(name)
		b, ok := bind(key, privateOnly)
		if !ok {
			if !privateOnly && !unknown[key] {
				unknown[key] = true
				res.Unknown = append(res.Unknown, name)
			}
			return nil
		}
		switch color[key] {
		case black:
			return nil
		case gray:
			return &core.CircularDependencyError{Cycle: displayCycle(cyclePath(stack, key), func(k string) string { return res.Bindings[k].Entity.Name })}
		}
		if len(stack) >= r.maxDepth {
			return &core.DepthExceededError{Name: b.Entity.Name, Limit: r.maxDepth}
		}

		color[key] = gray
		stack = append(stack, key)
		for _, dep := range b.Entity.Dependencies {
			if core.NormalizeName(dep) == key {
				continue
			}
			if err := visit(dep, b.Kind == core.PoolPrivate); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[key] = black

		if b.Kind == core.PoolPrivate {
			res.Private = append(res.Private, b.Entity)
		} else {
			res.Shared = append(res.Shared, b.Entity)
		}
		return nil
	}

	for _, name := range requested {
		if err := visit(name, false); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("resolved names",
		"requested", len(requested),
		"private", len(res.Private),
		"shared", len(res.Shared),
		"unknown", len(res.Unknown))
	return res, nil
}

func displayCycle(keys []string, display func(string) string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = display(k)
	}
	return out
}
