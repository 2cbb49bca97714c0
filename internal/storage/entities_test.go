package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

func TestUpsertEntity_RoundTrip(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, file := setupProjectFile(t, storage, "auth/login.go")

	entity := &types.Entity{
		ID:            "example.com/test/auth/login.go#AuthenticateUser",
		Type:          types.EntityFunction,
		Name:          "AuthenticateUser",
		QualifiedName: "example.com/test/auth.AuthenticateUser",
		FilePath:      "/test/auth/login.go",
		StartLine:     10,
		EndLine:       24,
		Language:      "go",
		Signature:     "func AuthenticateUser(name, password string) (*Session, error)",
		Summary:       "AuthenticateUser verifies credentials and opens a session.",
		Content:       "func AuthenticateUser(name, password string) (*Session, error) {\n\treturn nil, nil\n}",
		Metadata:      map[string]string{"scope": "exported"},
	}
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, entity))

	got, err := storage.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity, got)

	byName, err := storage.GetEntityByName(ctx, "AuthenticateUser")
	require.NoError(t, err)
	assert.Equal(t, entity.ID, byName.ID)

	byQN, err := storage.GetEntityByQualifiedName(ctx, "example.com/test/auth.AuthenticateUser")
	require.NoError(t, err)
	assert.Equal(t, entity.ID, byQN.ID)

	// Update replaces the row in place
	entity.Summary = "Updated summary."
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, entity))
	got, err = storage.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated summary.", got.Summary)

	_, err = storage.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestUpsertEntity_NoFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, _ := setupProjectFile(t, storage, "main.go")

	pkg := &types.Entity{ID: "example.com/test", Type: types.EntityPackage, Name: "test"}
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, nil, pkg))

	got, err := storage.GetEntity(ctx, "example.com/test")
	require.NoError(t, err)
	assert.Equal(t, types.EntityPackage, got.Type)
	assert.Nil(t, got.Metadata)
}

func TestListEntityIDs(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, file := setupProjectFile(t, storage, "main.go")

	ids, err := storage.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, e := range []*types.Entity{
		{ID: "main.go#b", Type: types.EntityFunction, Name: "b"},
		{ID: "main.go#a", Type: types.EntityFunction, Name: "a"},
	} {
		require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, e))
	}
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, nil, &types.Entity{ID: "pkg:main", Type: types.EntityPackage, Name: "main"}))

	ids, err = storage.ListEntityIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go#a", "main.go#b", "pkg:main"}, ids)
}

func TestUpsertEntity_Invalid(t *testing.T) {
	storage := setupTestDB(t)
	project, file := setupProjectFile(t, storage, "main.go")

	err := storage.UpsertEntity(context.Background(), project.ID, &file.ID, &types.Entity{ID: "x"})
	assert.Error(t, err)
}

func TestListEntitiesByFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, file := setupProjectFile(t, storage, "main.go")

	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID,
		&types.Entity{ID: "main.go#B", Type: types.EntityFunction, Name: "B", StartLine: 20, EndLine: 25}))
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID,
		&types.Entity{ID: "main.go#A", Type: types.EntityFunction, Name: "A", StartLine: 5, EndLine: 9}))

	entities, err := storage.ListEntitiesByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "A", entities[0].Name)
	assert.Equal(t, "B", entities[1].Name)

	require.NoError(t, storage.DeleteEntitiesByFile(ctx, file.ID))
	entities, err = storage.ListEntitiesByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestSearchEntities(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, file := setupProjectFile(t, storage, "auth.go")

	fixtures := []*types.Entity{
		{ID: "auth.go#AuthenticateUser", Type: types.EntityFunction, Name: "AuthenticateUser",
			Summary: "authenticate a user against the password store"},
		{ID: "auth.go#Session", Type: types.EntityStruct, Name: "Session",
			Summary: "session issued after login"},
		{ID: "auth.go#Cache", Type: types.EntityStruct, Name: "Cache",
			Summary: "lru cache for tokens"},
	}
	for _, e := range fixtures {
		require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, e))
	}

	results, err := storage.SearchEntities(ctx, "login session", types.EntitySearchOptions{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.go#Session", results[0].EntityID)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}

	// Type filter
	results, err = storage.SearchEntities(ctx, "user session cache",
		types.EntitySearchOptions{Types: []types.EntityType{types.EntityFunction}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth.go#AuthenticateUser", results[0].EntityID)

	// FTS syntax in user text is neutralized
	results, err = storage.SearchEntities(ctx, `"cache" AND (NEAR*`, types.EntitySearchOptions{})
	require.NoError(t, err)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.EntityID
	}
	assert.Contains(t, ids, "auth.go#Cache")

	// Blank text yields no results
	results, err = storage.SearchEntities(ctx, "  ?! ", types.EntitySearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEntities_FollowsUpdates(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	project, file := setupProjectFile(t, storage, "a.go")

	e := &types.Entity{ID: "a.go#Widget", Type: types.EntityStruct, Name: "Widget", Summary: "renders gizmos"}
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, e))

	e.Summary = "draws sprockets"
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, e))

	results, err := storage.SearchEntities(ctx, "gizmos", types.EntitySearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = storage.SearchEntities(ctx, "sprockets", types.EntitySearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, storage.DeleteEntitiesByFile(ctx, file.ID))
	results, err = storage.SearchEntities(ctx, "sprockets", types.EntitySearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"login session", `"login" OR "session"`},
		{"Login login", `"login"`},
		{`a"b`, `"a" OR "b"`},
		{"max_retries", `"max_retries"`},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildFTSQuery(tt.in), tt.in)
	}
}
