// Package pool provides an in-memory entity pool, used to stage edits
// before they are committed to a persistent store.
package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Memory is a mutex-guarded core.EntityStore. Entities are copied on the
// way in and out, so callers never share memory with the pool.
type Memory struct {
	mu       sync.RWMutex
	entities map[string]*core.Entity
	now      func() time.Time
}

// NewMemory creates a pool holding copies of entities.
func NewMemory(entities ...*core.Entity) *Memory {
	m := &Memory{
		entities: make(map[string]*core.Entity, len(entities)),
		now:      time.Now,
	}
	for _, e := range entities {
		m.entities[e.Key()] = e.Clone()
	}
	return m
}

// Get returns the entity named name or core.ErrEntityNotFound.
func (m *Memory) Get(name string) (*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[core.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	return e.Clone(), nil
}

// List returns all entities sorted by name.
func (m *Memory) List() ([]*core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*core.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// Put inserts or replaces an entity. A zero UpdatedAt is stamped.
func (m *Memory) Put(entity *core.Entity) error {
	if entity == nil || entity.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	e := entity.Clone()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.Key()] = e
	return nil
}

// Delete removes an entity. Deleting a missing entity is an error.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := core.NormalizeName(name)
	if _, ok := m.entities[key]; !ok {
		return fmt.Errorf("%w: %s", core.ErrEntityNotFound, name)
	}
	delete(m.entities, key)
	return nil
}

// ReplaceAll swaps the whole content of the pool.
func (m *Memory) ReplaceAll(entities []*core.Entity) error {
	next := make(map[string]*core.Entity, len(entities))
	for _, e := range entities {
		if e == nil || e.Name == "" {
			return fmt.Errorf("entity name is required")
		}
		next[e.Key()] = e.Clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = next
	return nil
}

// Clear removes every entity.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[string]*core.Entity)
	return nil
}

// Len returns the number of entities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}
