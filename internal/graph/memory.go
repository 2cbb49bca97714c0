package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

// ErrNotFound is returned by MemoryStore when a relationship id is unknown
var ErrNotFound = errors.New("relationship not found")

// MemoryStore is an in-memory RelationshipStore. Relationships are listed in
// insertion order, matching the SQLite store.
type MemoryStore struct {
	mu   sync.RWMutex
	rels []*types.Relationship
	ids  map[string]struct{}
}

// NewMemoryStore creates an empty in-memory relationship store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

// CreateRelationship stores a copy of rel
func (m *MemoryStore) CreateRelationship(_ context.Context, rel *types.Relationship) error {
	if rel.ID == "" || rel.SourceID == "" || rel.TargetID == "" || rel.Type == "" {
		return fmt.Errorf("%w: id, source, target and type are required", types.ErrInvalidRelationship)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.ids[rel.ID]; dup {
		return fmt.Errorf("%w: duplicate id %s", types.ErrInvalidRelationship, rel.ID)
	}

	stored := *rel
	if stored.Weight == 0 {
		stored.Weight = types.DefaultRelationshipWeight
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.rels = append(m.rels, &stored)
	m.ids[rel.ID] = struct{}{}
	return nil
}

// DeleteRelationship removes an edge by id
func (m *MemoryStore) DeleteRelationship(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.rels {
		if r.ID == id {
			m.rels = append(m.rels[:i], m.rels[i+1:]...)
			delete(m.ids, id)
			return nil
		}
	}
	return ErrNotFound
}

// ListRelationships returns edges matching the filter
func (m *MemoryStore) ListRelationships(_ context.Context, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*types.Relationship, 0)
	for _, r := range m.rels {
		if !filter.Matches(r) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
