package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/pool"
	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Entities lists a workspace's private pool.
func (e *Engine) Entities(ref string) ([]*core.Entity, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}
	return e.store.ListEntities(ws.ID)
}

// Entity returns one private sub-query.
func (e *Engine) Entity(ref, name string) (*core.Entity, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}
	return e.store.GetEntity(ws.ID, name)
}

// EditResult is the outcome of PutEntity.
type EditResult struct {
	Entity      *core.Entity      `json:"entity"`
	Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
}

// PutEntity creates or replaces a private sub-query. Dependencies and
// output columns are recomputed from the body; a body that cannot be
// scanned precisely keeps best-effort dependencies and a warning.
// A self reference is only accepted for recursive entities, and an edit
// that would close a dependency cycle is rejected before anything is
// written.
func (e *Engine) PutEntity(ref string, in *core.Entity) (*EditResult, error) {
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("entity name is required")
	}
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}

	entity, diags, err := e.refresh(in)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return nil, err
	}
	// stage the edit so the cycle check sees the pool as it would be
	staged := pool.NewMemory(current...)
	if err := staged.Put(entity); err != nil {
		return nil, err
	}
	next, err := staged.List()
	if err != nil {
		return nil, err
	}

	g, err := dag.BuildGraph(next, nil)
	if err != nil {
		return nil, err
	}
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &core.CircularDependencyError{Cycle: cycle}
	}
	// chains are walked from their tops so the depth bound sees each in full
	if _, err := e.resolver.TopologicalOrder(g.Leaves(), g.Adjacency()); err != nil {
		return nil, err
	}

	if err := e.store.PutEntity(ws.ID, entity); err != nil {
		return nil, err
	}
	e.logger.Debug("saved entity", "workspace", ws.Name, "name", entity.Name, "dependencies", len(entity.Dependencies))
	return &EditResult{Entity: entity, Diagnostics: diags}, nil
}

// refresh recomputes the derived fields of an entity from its body.
func (e *Engine) refresh(in *core.Entity) (*core.Entity, []core.Diagnostic, error) {
	entity := in.Clone()
	entity.Name = strings.TrimSpace(entity.Name)
	entity.Body = strings.TrimSpace(entity.Body)
	if entity.Body == "" {
		return nil, nil, fmt.Errorf("entity %q has an empty body", entity.Name)
	}

	var diags []core.Diagnostic
	scan := e.scanner.ScanWithFallback(entity.Body)
	var depthErr *core.DepthExceededError
	if errors.As(scan.Cause, &depthErr) {
		return nil, nil, scan.Cause
	}
	if scan.Degraded {
		diags = append(diags, core.NewDiagnostic(core.SeverityWarning, entity.Name, scan.Cause))
	}

	key := entity.Key()
	deps := make([]string, 0, len(scan.Names))
	for _, n := range scan.Names {
		if core.NormalizeName(n) == key {
			if !entity.Recursive {
				return nil, nil, &core.CircularDependencyError{Cycle: []string{entity.Name, entity.Name}}
			}
			continue
		}
		deps = append(deps, n)
	}
	entity.Dependencies = deps
	entity.OutputColumns, _ = scanner.OutputColumns(entity.Body)
	entity.UpdatedAt = time.Now().UTC()
	return entity, diags, nil
}

// RemoveEntity deletes a private sub-query. It fails with a
// *core.InUseError while other sub-queries depend on it, unless force is
// set; the dependents are returned either way.
func (e *Engine) RemoveEntity(ref, name string, force bool) ([]string, error) {
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, err := e.store.GetEntity(ws.ID, name)
	if err != nil {
		return nil, err
	}
	private, err := e.privateSnapshot(ws)
	if err != nil {
		return nil, err
	}
	dependents := dag.FindDependents(target.Name, dag.DependencyGraph(private))
	if len(dependents) > 0 && !force {
		return dependents, &core.InUseError{Name: target.Name, Dependents: dependents}
	}

	if err := e.store.DeleteEntity(ws.ID, target.Name); err != nil {
		return nil, err
	}
	e.logger.Info("removed entity", "workspace", ws.Name, "name", target.Name, "dependents", len(dependents))
	return dependents, nil
}

// RenameEntity renames a private sub-query and rewrites every reference to
// it in the other sub-queries and the saved main query. It returns the
// names of the rewritten sub-queries.
func (e *Engine) RenameEntity(ref, oldName, newName string) ([]string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("new name is required")
	}
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entities, err := e.store.ListEntities(ws.ID)
	if err != nil {
		return nil, err
	}
	oldKey, newKey := core.NormalizeName(oldName), core.NormalizeName(newName)

	found := false
	for _, ent := range entities {
		switch ent.Key() {
		case oldKey:
			found = true
		case newKey:
			return nil, fmt.Errorf("entity %q already exists", ent.Name)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", core.ErrEntityNotFound, oldName)
	}

	replacement := e.composer.Ident(newName)
	var rewritten []string
	for _, ent := range entities {
		if ent.Key() == oldKey {
			ent.Name = newName
		}
		body, changed, err := e.rewriteReferences(ent.Body, oldKey, replacement)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite %q: %w", ent.Name, err)
		}
		if !changed {
			continue
		}
		ent.Body = body
		for i, dep := range ent.Dependencies {
			if core.NormalizeName(dep) == oldKey {
				ent.Dependencies[i] = newName
			}
		}
		ent.UpdatedAt = time.Now().UTC()
		if ent.Key() != newKey {
			rewritten = append(rewritten, ent.Name)
		}
	}

	mainSQL := ws.MainSQL
	if strings.TrimSpace(mainSQL) != "" {
		body, changed, err := e.rewriteReferences(mainSQL, oldKey, replacement)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite main query: %w", err)
		}
		if changed {
			mainSQL = body
		}
	}

	if err := e.store.ReplaceWorkspace(ws.ID, ws.MainName, mainSQL, entities); err != nil {
		return nil, err
	}

	sort.Strings(rewritten)
	e.logger.Info("renamed entity", "workspace", ws.Name, "from", oldName, "to", newName, "rewritten", len(rewritten))
	return rewritten, nil
}

// rewriteReferences replaces unqualified relation references to key in
// body. Offsets come from the scanner, so names inside literals, comments
// and column positions are never touched.
func (e *Engine) rewriteReferences(body, key, replacement string) (string, bool, error) {
	refs, err := e.scanner.References(body)
	if err != nil {
		return "", false, err
	}
	var hits []scanner.Reference
	for _, r := range refs {
		if !r.Qualified && core.NormalizeName(r.Name) == key {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		return body, false, nil
	}

	var b strings.Builder
	last := 0
	for _, r := range hits {
		b.WriteString(body[last:r.Start])
		b.WriteString(replacement)
		last = r.End
	}
	b.WriteString(body[last:])
	return b.String(), true, nil
}
