package engine

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/resolution"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Resolve composes an ad-hoc query with the sub-queries it references from
// the workspace's private pool and the shared library. An empty ref
// resolves against the library alone.
func (e *Engine) Resolve(ref, query string) (*resolution.Result, error) {
	private := core.NewSnapshot(nil)
	if ref != "" {
		ws, err := e.store.GetWorkspace(ref)
		if err != nil {
			return nil, err
		}
		if private, err = e.privateSnapshot(ws); err != nil {
			return nil, err
		}
	}
	shared, err := e.sharedSnapshot()
	if err != nil {
		return nil, err
	}
	return e.resolution.Resolve(query, private, shared)
}

// PublishError reports sub-query dependencies that must be published to
// the library first.
type PublishError struct {
	Name    string
	Missing []string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("cannot publish %q: dependencies not in the library: %s", e.Name, strings.Join(e.Missing, ", "))
}

// Publish copies a private sub-query into the shared library. Every
// dependency that is itself a private sub-query must already be in the
// library, so that library entities never depend on a workspace.
func (e *Engine) Publish(ref, name string, overwrite bool) (*core.Entity, error) {
	if e.library == nil {
		return nil, errNoLibrary
	}
	ws, err := e.store.GetWorkspace(ref)
	if err != nil {
		return nil, err
	}
	entity, err := e.store.GetEntity(ws.ID, name)
	if err != nil {
		return nil, err
	}
	private, err := e.privateSnapshot(ws)
	if err != nil {
		return nil, err
	}
	shared, err := e.sharedSnapshot()
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, dep := range entity.Dependencies {
		if private.Has(dep) && !shared.Has(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return nil, &PublishError{Name: entity.Name, Missing: missing}
	}
	if shared.Has(entity.Name) && !overwrite {
		return nil, fmt.Errorf("%q already exists in the library", entity.Name)
	}

	published := entity.Clone()
	if err := e.library.Put(published); err != nil {
		return nil, err
	}
	e.logger.Info("published entity", "workspace", ws.Name, "name", entity.Name, "library", e.library.Dir())
	return published, nil
}

// LibraryEntities lists the shared library.
func (e *Engine) LibraryEntities() ([]*core.Entity, error) {
	if e.library == nil {
		return nil, errNoLibrary
	}
	return e.library.List()
}

// LibraryEntity returns one shared sub-query.
func (e *Engine) LibraryEntity(name string) (*core.Entity, error) {
	if e.library == nil {
		return nil, errNoLibrary
	}
	return e.library.Get(name)
}

// RefreshLibrary reloads changed library files.
func (e *Engine) RefreshLibrary() error {
	if e.library == nil {
		return errNoLibrary
	}
	return e.library.Refresh()
}
