package state

import "github.com/leapstack-labs/ctesplit/pkg/core"

// Store is the persistence contract the engine relies on: workspaces with
// a saved main query, each owning one private pool of entities.
type Store interface {
	Close() error

	CreateWorkspace(name string) (*core.Workspace, error)
	// GetWorkspace finds a workspace by ID or name and returns
	// core.ErrWorkspaceNotFound when there is none.
	GetWorkspace(ref string) (*core.Workspace, error)
	ListWorkspaces() ([]*core.Workspace, error)
	SaveMain(workspaceID, name, sqlText string) error
	DeleteWorkspace(workspaceID string) error

	GetEntity(workspaceID, name string) (*core.Entity, error)
	ListEntities(workspaceID string) ([]*core.Entity, error)
	PutEntity(workspaceID string, e *core.Entity) error
	DeleteEntity(workspaceID, name string) error
	// ReplaceEntities swaps the whole pool in one transaction.
	ReplaceEntities(workspaceID string, entities []*core.Entity) error
	ClearEntities(workspaceID string) error
	// ReplaceWorkspace swaps the pool and the main query in one transaction.
	ReplaceWorkspace(workspaceID, mainName, mainSQL string, entities []*core.Entity) error
	// Pool exposes one workspace's entities as a core.EntityStore.
	Pool(workspaceID string) *WorkspacePool
}

var _ Store = (*SQLiteStore)(nil)
