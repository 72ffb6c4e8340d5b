package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// CreateWorkspace creates an empty workspace.
func (e *Engine) CreateWorkspace(name string) (*core.Workspace, error) {
	ws, err := e.store.CreateWorkspace(name)
	if err != nil {
		return nil, err
	}
	e.logger.Info("created workspace", "name", ws.Name, "id", ws.ID)
	return ws, nil
}

// EnsureWorkspace returns the workspace named name, creating it if needed.
func (e *Engine) EnsureWorkspace(name string) (*core.Workspace, error) {
	ws, err := e.store.GetWorkspace(name)
	if errors.Is(err, core.ErrWorkspaceNotFound) {
		return e.CreateWorkspace(name)
	}
	return ws, err
}

// Workspace finds a workspace by ID or name.
func (e *Engine) Workspace(ref string) (*core.Workspace, error) {
	return e.store.GetWorkspace(ref)
}

// Workspaces lists all workspaces.
func (e *Engine) Workspaces() ([]*core.Workspace, error) {
	return e.store.ListWorkspaces()
}

// DeleteWorkspace removes a workspace with its private pool.
func (e *Engine) DeleteWorkspace(ref string) error {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return err
	}
	return e.store.DeleteWorkspace(ws.ID)
}

// DecomposeResult is the outcome of Decompose.
type DecomposeResult struct {
	Workspace *core.Workspace
	// MainName and MainSQL are the saved main query.
	MainName string
	MainSQL  string
	// Entities is the new private pool in source order.
	Entities []*core.Entity
	// Order lists sub-query names, dependencies first.
	Order []string
}

// Decompose splits sql and replaces the workspace's private pool with its
// sub-queries. The main query is saved with the workspace. The previous
// pool is discarded, not merged.
func (e *Engine) Decompose(ref, sql, mainName string) (*DecomposeResult, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}

	d, err := e.decomposer.Decompose(sql, mainName)
	if err != nil {
		return nil, err
	}
	order, err := d.ExecutionOrder()
	if err != nil {
		return nil, err
	}
	main := d.MainModel()
	entities := d.Entities()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.ReplaceWorkspace(ws.ID, main.Name, main.Body, entities); err != nil {
		return nil, err
	}

	e.logger.Info("decomposed into workspace",
		"workspace", ws.Name,
		"main", main.Name,
		"sub_queries", len(entities))
	return &DecomposeResult{
		Workspace: ws,
		MainName:  main.Name,
		MainSQL:   main.Body,
		Entities:  entities,
		Order:     order,
	}, nil
}

// Compose reassembles mainSQL, or the saved main query when mainSQL is
// empty, with the private sub-queries it transitively references.
func (e *Engine) Compose(ref, mainSQL string) (string, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return "", err
	}
	mainName := ws.MainName
	if strings.TrimSpace(mainSQL) == "" {
		mainSQL = ws.MainSQL
	} else {
		mainName = ""
	}
	if strings.TrimSpace(mainSQL) == "" {
		return "", fmt.Errorf("workspace %q has no main query", ws.Name)
	}

	entities, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return "", err
	}
	d, err := e.decomposer.Rebuild(mainName, mainSQL, entities)
	if err != nil {
		return "", err
	}
	return e.composer.ReconstructSQL(d, d.Main)
}

// ComposeEntity renders one private sub-query as a standalone statement
// with the WITH clause its own dependencies need.
func (e *Engine) ComposeEntity(ref, name string) (string, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return "", err
	}
	entities, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return "", err
	}
	d, err := e.decomposer.Rebuild("", "SELECT 1", entities)
	if err != nil {
		return "", err
	}
	id, ok := d.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	return e.composer.ReconstructSQL(d, id)
}

// Export composes mainSQL (or the saved main query) with the named private
// sub-queries and everything they depend on in the private pool. Without
// names, the sub-queries referenced by the main query are used.
func (e *Engine) Export(ref, mainSQL string, names []string) (string, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(mainSQL) == "" {
		mainSQL = ws.MainSQL
	}
	if strings.TrimSpace(mainSQL) == "" {
		return "", fmt.Errorf("workspace %q has no main query", ws.Name)
	}

	private, err := e.privateSnapshot(ws)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		if !private.Has(n) {
			return "", fmt.Errorf("%w: %s", core.ErrEntityNotFound, n)
		}
	}
	if len(names) == 0 {
		if names, err = e.scanner.Scan(mainSQL); err != nil {
			return "", fmt.Errorf("failed to scan main query: %w", err)
		}
	}

	res, err := e.resolver.ResolveTwoPool(names, private, core.NewSnapshot(nil))
	if err != nil {
		return "", err
	}
	return e.composer.Compose(mainSQL, res.Private)
}

// Clear empties the private pool and the saved main query.
func (e *Engine) Clear(ref string) error {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.ReplaceWorkspace(ws.ID, "", "", nil); err != nil {
		return err
	}
	e.logger.Info("cleared workspace", "workspace", ws.Name)
	return nil
}

// Graph returns the dependency graph of a workspace's private pool.
func (e *Engine) Graph(ref string) (*dag.Graph, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}
	entities, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return nil, err
	}
	return dag.BuildGraph(entities, nil)
}

// Dependents returns the private sub-queries that reference name, directly
// or, with transitive, through other sub-queries. name may be a sub-query
// or a real table.
func (e *Engine) Dependents(ref, name string, transitive bool) ([]string, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}
	entities, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return nil, err
	}

	key := core.NormalizeName(name)
	var direct []string
	for _, ent := range entities {
		if ent.Key() == key {
			continue
		}
		for _, dep := range ent.Dependencies {
			if core.NormalizeName(dep) == key {
				direct = append(direct, ent.Name)
				break
			}
		}
	}
	if !transitive || len(direct) == 0 {
		sort.Strings(direct)
		return direct, nil
	}

	g, err := dag.BuildGraph(entities, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range g.AffectedNodes(direct) {
		if core.NormalizeName(n) != key {
			out = append(out, n)
		}
	}
	return out, nil
}

// Upstream returns every private sub-query that name depends on, directly
// or through other sub-queries.
func (e *Engine) Upstream(ref, name string) ([]string, error) {
	g, err := e.Graph(ref)
	if err != nil {
		return nil, err
	}
	if !g.Has(name) {
		return nil, fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	return g.Upstream(name), nil
}
