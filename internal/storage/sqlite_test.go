package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

// setupProjectFile creates a project with one file and returns both
func setupProjectFile(t *testing.T, s *SQLiteStorage, path string) (*Project, *File) {
	t.Helper()
	ctx := context.Background()

	project := &Project{RootPath: "/test", ModuleName: "example.com/test", IndexVersion: CurrentSchemaVersion}
	if existing, err := s.GetProject(ctx, "/test"); err == nil {
		project = existing
	} else {
		require.NoError(t, s.CreateProject(ctx, project))
	}

	file := &File{
		ProjectID:   project.ID,
		FilePath:    path,
		PackageName: "test",
		Language:    "go",
		ContentHash: [32]byte{1, 2, 3},
		ModTime:     time.Now(),
		SizeBytes:   100,
	}
	require.NoError(t, s.UpsertFile(ctx, file))
	return project, file
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)
}

func TestCreateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := &Project{
		RootPath:     "/test/path",
		ModuleName:   "github.com/test/project",
		GoVersion:    "1.25",
		IndexVersion: CurrentSchemaVersion,
	}

	err := storage.CreateProject(ctx, project)
	require.NoError(t, err)
	assert.Greater(t, project.ID, int64(0))

	// Try to create duplicate - should fail
	duplicate := &Project{RootPath: "/test/path", ModuleName: "another", IndexVersion: CurrentSchemaVersion}
	err = storage.CreateProject(ctx, duplicate)
	assert.Error(t, err)
}

func TestGetProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := &Project{RootPath: "/test/path", ModuleName: "github.com/test/project", IndexVersion: "1.1.0"}
	require.NoError(t, storage.CreateProject(ctx, project))

	retrieved, err := storage.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, project.ID, retrieved.ID)
	assert.Equal(t, project.ModuleName, retrieved.ModuleName)

	byID, err := storage.GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "/test/path", byID.RootPath)

	_, err = storage.GetProject(ctx, "/nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project := &Project{RootPath: "/test/path", ModuleName: "github.com/test/project", IndexVersion: "1.1.0"}
	require.NoError(t, storage.CreateProject(ctx, project))

	project.ModuleName = "github.com/test/updated"
	project.TotalFiles = 10
	project.TotalEntities = 100
	project.LastIndexedAt = time.Now()
	require.NoError(t, storage.UpdateProject(ctx, project))

	updated, err := storage.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, "github.com/test/updated", updated.ModuleName)
	assert.Equal(t, 10, updated.TotalFiles)
	assert.Equal(t, 100, updated.TotalEntities)
	assert.False(t, updated.LastIndexedAt.IsZero())
}

func TestUpsertFile(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	_, file := setupProjectFile(t, storage, "main.go")
	originalID := file.ID

	// Update same file
	file.SizeBytes = 5678
	require.NoError(t, storage.UpsertFile(ctx, file))
	assert.Equal(t, originalID, file.ID)

	retrieved, err := storage.GetFile(ctx, file.ProjectID, "main.go")
	require.NoError(t, err)
	assert.Equal(t, int64(5678), retrieved.SizeBytes)
	assert.Equal(t, "go", retrieved.Language)
	assert.Equal(t, [32]byte{1, 2, 3}, retrieved.ContentHash)

	_, err = storage.GetFile(ctx, 999, "nonexistent.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiles(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project, _ := setupProjectFile(t, storage, "b.go")
	setupProjectFile(t, storage, "a.go")
	setupProjectFile(t, storage, "c.md")

	files, err := storage.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.go", files[0].FilePath)
	assert.Equal(t, "c.md", files[2].FilePath)
}

func TestDeleteFile_CascadesEntities(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project, file := setupProjectFile(t, storage, "main.go")
	entity := &types.Entity{ID: "main.go#Run", Type: types.EntityFunction, Name: "Run"}
	require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID, entity))
	require.NoError(t, storage.CreateRelationship(ctx, &types.Relationship{
		SourceID: "main.go#Run", TargetID: "other.go#Helper", Type: types.RelCalls,
	}))

	require.NoError(t, storage.DeleteFile(ctx, file.ID))

	_, err := storage.GetFile(ctx, project.ID, "main.go")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.GetEntity(ctx, "main.go#Run")
	assert.ErrorIs(t, err, ErrNotFound)

	rels, err := storage.ListRelationships(ctx, types.RelationshipFilter{SourceID: "main.go#Run"})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project, file := setupProjectFile(t, storage, "main.go")

	// Rolled back writes are discarded
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertEntity(ctx, project.ID, &file.ID,
		&types.Entity{ID: "main.go#Discarded", Type: types.EntityFunction, Name: "Discarded"}))

	// Reads inside the transaction see its writes
	inTx, err := tx.GetEntity(ctx, "main.go#Discarded")
	require.NoError(t, err)
	assert.Equal(t, "Discarded", inTx.Name)
	require.NoError(t, tx.Rollback())

	_, err = storage.GetEntity(ctx, "main.go#Discarded")
	assert.ErrorIs(t, err, ErrNotFound)

	// Committed writes persist
	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertEntity(ctx, project.ID, &file.ID,
		&types.Entity{ID: "main.go#Kept", Type: types.EntityFunction, Name: "Kept"}))
	require.NoError(t, tx.Commit())

	kept, err := storage.GetEntity(ctx, "main.go#Kept")
	require.NoError(t, err)
	assert.Equal(t, types.EntityFunction, kept.Type)

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	project, file := setupProjectFile(t, storage, "main.go")
	for _, name := range []string{"A", "B"} {
		require.NoError(t, storage.UpsertEntity(ctx, project.ID, &file.ID,
			&types.Entity{ID: "main.go#" + name, Type: types.EntityFunction, Name: name}))
	}
	require.NoError(t, storage.CreateRelationship(ctx, &types.Relationship{
		SourceID: "main.go#A", TargetID: "main.go#B", Type: types.RelCalls,
	}))
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		EntityID: "main.go#A", Vector: SerializeVector([]float32{1, 0}), Dimension: 2,
		Provider: "local", Model: "test",
	}))

	status, err := storage.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 2, status.EntitiesCount)
	assert.Equal(t, 1, status.RelationshipsCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.EmbeddingsAvailable)
	assert.True(t, status.Health.FTSIndexesBuilt)

	_, err = storage.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrations_RollbackAndReapply(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	var version string
	require.NoError(t, storage.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY rowid DESC LIMIT 1").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)

	// Applying again is a no-op
	require.NoError(t, ApplyMigrations(ctx, storage.db))

	require.NoError(t, RollbackMigration(ctx, storage.db))
	require.NoError(t, storage.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY rowid DESC LIMIT 1").Scan(&version))
	assert.Equal(t, "1.0.0", version)

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	require.NoError(t, storage.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version ORDER BY rowid DESC LIMIT 1").Scan(&version))
	assert.Equal(t, CurrentSchemaVersion, version)
}
