package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

func TestCreateRelationship(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	rel := &types.Relationship{SourceID: "a", TargetID: "b", Type: types.RelCalls, Metadata: []byte(`{"line":3}`)}
	require.NoError(t, storage.CreateRelationship(ctx, rel))
	assert.NotEmpty(t, rel.ID)
	assert.Equal(t, types.DefaultRelationshipWeight, rel.Weight)

	rels, err := storage.ListRelationships(ctx, types.RelationshipFilter{SourceID: "a"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel.ID, rels[0].ID)
	assert.Equal(t, []byte(`{"line":3}`), rels[0].Metadata)

	// Same id twice is rejected
	err = storage.CreateRelationship(ctx, &types.Relationship{ID: rel.ID, SourceID: "a", TargetID: "c", Type: types.RelCalls})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = storage.CreateRelationship(ctx, &types.Relationship{SourceID: "a", Type: types.RelCalls})
	assert.ErrorIs(t, err, types.ErrInvalidRelationship)
}

func TestListRelationships_Filters(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	edges := []*types.Relationship{
		{SourceID: "a", TargetID: "b", Type: types.RelCalls, Weight: 1},
		{SourceID: "a", TargetID: "b", Type: types.RelCalls, Weight: 0.5},
		{SourceID: "b", TargetID: "c", Type: types.RelImports, Weight: 2},
		{SourceID: "c", TargetID: "a", Type: types.RelContains, Weight: 3},
	}
	for _, e := range edges {
		require.NoError(t, storage.CreateRelationship(ctx, e))
	}

	maxWeight := 2.0
	tests := []struct {
		name   string
		filter types.RelationshipFilter
		want   []string
	}{
		{"by source keeps multi-edges", types.RelationshipFilter{SourceID: "a"}, []string{edges[0].ID, edges[1].ID}},
		{"by target", types.RelationshipFilter{TargetID: "c"}, []string{edges[2].ID}},
		{"either endpoint", types.RelationshipFilter{EntityID: "c"}, []string{edges[2].ID, edges[3].ID}},
		{"by type", types.RelationshipFilter{Types: []string{types.RelImports, types.RelContains}}, []string{edges[2].ID, edges[3].ID}},
		{"weight range", types.RelationshipFilter{MinWeight: 1, MaxWeight: &maxWeight}, []string{edges[0].ID, edges[2].ID}},
		{"limit", types.RelationshipFilter{Limit: 1}, []string{edges[0].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rels, err := storage.ListRelationships(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, len(rels))
			for i, r := range rels {
				got[i] = r.ID
				assert.True(t, tt.filter.Matches(r))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeleteRelationship(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	rel := &types.Relationship{SourceID: "a", TargetID: "b", Type: types.RelRelatesTo}
	require.NoError(t, storage.CreateRelationship(ctx, rel))

	require.NoError(t, storage.DeleteRelationship(ctx, rel.ID))
	assert.ErrorIs(t, storage.DeleteRelationship(ctx, rel.ID), ErrNotFound)

	rels, err := storage.ListRelationships(ctx, types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Empty(t, rels)
}
