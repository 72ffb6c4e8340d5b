package core

import "sort"

// PoolKind identifies which pool an entity was resolved from.
type PoolKind int

// Pool kinds in priority order: a Private entity shadows a Shared one.
const (
	PoolPrivate PoolKind = iota
	PoolShared
)

// String returns the string representation of the pool kind.
func (k PoolKind) String() string {
	switch k {
	case PoolPrivate:
		return "private"
	case PoolShared:
		return "shared"
	default:
		return "unknown"
	}
}

// Binding is the result of looking a name up through the pool priority chain.
type Binding struct {
	Kind   PoolKind
	Entity *Entity
}

// Snapshot is an immutable copy of a pool taken at the start of a call.
// Concurrent edits to the pool do not affect a snapshot.
type Snapshot struct {
	byKey map[string]*Entity
	keys  []string
}

// NewSnapshot copies entities into a snapshot. When two entities share a
// normalized name, the later one wins (last-writer-wins).
func NewSnapshot(entities []*Entity) Snapshot {
	s := Snapshot{byKey: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e == nil {
			continue
		}
		key := e.Key()
		if _, exists := s.byKey[key]; !exists {
			s.keys = append(s.keys, key)
		}
		s.byKey[key] = e.Clone()
	}
	return s
}

// Lookup returns the entity registered under name.
func (s Snapshot) Lookup(name string) (*Entity, bool) {
	e, ok := s.byKey[NormalizeName(name)]
	return e, ok
}

// Has reports whether name is an entity of the snapshot.
func (s Snapshot) Has(name string) bool {
	_, ok := s.byKey[NormalizeName(name)]
	return ok
}

// Len returns the number of entities.
func (s Snapshot) Len() int {
	return len(s.byKey)
}

// Entities returns the entities in insertion order.
func (s Snapshot) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.byKey[k])
	}
	return out
}

// Names returns the entity names sorted by normalized key.
func (s Snapshot) Names() []string {
	keys := append([]string(nil), s.keys...)
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.byKey[k].Name
	}
	return names
}
