package core

import "time"

// EntityStore is the persistence contract of one pool.
// Get returns ErrEntityNotFound when the name is absent.
type EntityStore interface {
	Get(name string) (*Entity, error)
	List() ([]*Entity, error)
	Put(entity *Entity) error
	Delete(name string) error
}

// SharedStore is the cross-workspace pool. Its entities are cached and a
// cached entity is stale once the modification time of its backing source
// exceeds the cached one.
type SharedStore interface {
	EntityStore
	IsStale(name string) (bool, error)
	Refresh() error
}

// Workspace owns one private pool and an optional saved main query.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MainName  string    `json:"main_name,omitempty"`
	MainSQL   string    `json:"main_sql,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotOf lists a store and copies its entities into a Snapshot.
func SnapshotOf(store EntityStore) (Snapshot, error) {
	if store == nil {
		return NewSnapshot(nil), nil
	}
	entities, err := store.List()
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(entities), nil
}
