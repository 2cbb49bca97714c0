package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	// DefaultMaxExpansions bounds the number of queue items a single path
	// search may expand
	DefaultMaxExpansions = 10000

	// DefaultPathDepth is the hop ceiling for path searches without an explicit depth
	DefaultPathDepth = 6
)

// RelationshipStore persists relationships. The SQLite storage and MemoryStore
// both satisfy it.
type RelationshipStore interface {
	CreateRelationship(ctx context.Context, rel *types.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error
	ListRelationships(ctx context.Context, filter types.RelationshipFilter) ([]*types.Relationship, error)
}

// EntityLister enumerates entity ids so graph statistics can count
// entities without relationships
type EntityLister interface {
	ListEntityIDs(ctx context.Context) ([]string, error)
}

// Store creates relationships and answers traversal queries over them.
// Traversals never write to the underlying RelationshipStore.
type Store struct {
	rels          RelationshipStore
	entities      EntityLister
	logger        *slog.Logger
	maxExpansions int
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for traversal diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEntities counts every listed entity as a graph node in GetGraphStats
func WithEntities(l EntityLister) Option {
	return func(s *Store) { s.entities = l }
}

// WithMaxExpansions bounds path searches
func WithMaxExpansions(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxExpansions = n
		}
	}
}

// New creates a graph store on top of a relationship store
func New(rels RelationshipStore, opts ...Option) *Store {
	s := &Store{
		rels:          rels,
		logger:        slog.Default(),
		maxExpansions: DefaultMaxExpansions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRelationship stores a new directed edge with a fresh uuid.
// A zero weight becomes DefaultRelationshipWeight. Duplicate
// (source, target, type) triples are allowed; use Exists to avoid them.
func (s *Store) CreateRelationship(ctx context.Context, sourceID, targetID, relType string, weight float64, metadata []byte) (*types.Relationship, error) {
	if sourceID == "" || targetID == "" || relType == "" {
		return nil, fmt.Errorf("%w: source, target and type are required", types.ErrInvalidRelationship)
	}
	if weight < 0 {
		return nil, fmt.Errorf("%w: negative weight %v", types.ErrInvalidRelationship, weight)
	}
	if weight == 0 {
		weight = types.DefaultRelationshipWeight
	}

	rel := &types.Relationship{
		ID:        uuid.NewString(),
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      relType,
		Weight:    weight,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.rels.CreateRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}

	recordRelationshipCreated(ctx, relType)
	return rel, nil
}

// DeleteRelationship removes an edge by id
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	if err := s.rels.DeleteRelationship(ctx, id); err != nil {
		return fmt.Errorf("failed to delete relationship %s: %w", id, err)
	}
	return nil
}

// Exists reports whether an edge source → target exists. An empty relType
// matches any type.
func (s *Store) Exists(ctx context.Context, sourceID, targetID, relType string) (bool, error) {
	filter := types.RelationshipFilter{SourceID: sourceID, TargetID: targetID, Limit: 1}
	if relType != "" {
		filter.Types = []string{relType}
	}
	rels, err := s.rels.ListRelationships(ctx, filter)
	if err != nil {
		return false, err
	}
	return len(rels) > 0, nil
}

// GetDependents returns the sources of direct incoming edges, in edge order
func (s *Store) GetDependents(ctx context.Context, id string, relTypes ...string) ([]string, error) {
	ctx, span := startQuerySpan(ctx, "GetDependents", id)
	defer span.End()

	rels, err := s.rels.ListRelationships(ctx, types.RelationshipFilter{TargetID: id, Types: relTypes})
	if err != nil {
		return nil, err
	}
	return uniqueEndpoints(rels, func(r *types.Relationship) string { return r.SourceID }), nil
}

// GetDependencies returns the targets of direct outgoing edges, in edge order
func (s *Store) GetDependencies(ctx context.Context, id string, relTypes ...string) ([]string, error) {
	ctx, span := startQuerySpan(ctx, "GetDependencies", id)
	defer span.End()

	rels, err := s.rels.ListRelationships(ctx, types.RelationshipFilter{SourceID: id, Types: relTypes})
	if err != nil {
		return nil, err
	}
	return uniqueEndpoints(rels, func(r *types.Relationship) string { return r.TargetID }), nil
}

// GetDegree counts the edges touching id in the given direction.
// A self-loop counts once for DirectionBoth.
func (s *Store) GetDegree(ctx context.Context, id string, direction types.Direction) (int, error) {
	var filter types.RelationshipFilter
	switch direction {
	case types.DirectionOut:
		filter.SourceID = id
	case types.DirectionIn:
		filter.TargetID = id
	default:
		filter.EntityID = id
	}

	rels, err := s.rels.ListRelationships(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(rels), nil
}

// uniqueEndpoints collects one endpoint per edge, dropping repeats
func uniqueEndpoints(rels []*types.Relationship, pick func(*types.Relationship) string) []string {
	seen := make(map[string]struct{}, len(rels))
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		id := pick(r)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

