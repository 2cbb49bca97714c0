package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/internal/parser"
	"github.com/dshills/ctxgraph/internal/storage"
	"github.com/dshills/ctxgraph/pkg/types"
)

// recordingEmbedder implements EntityEmbedder and remembers what it saw
type recordingEmbedder struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingEmbedder) IndexEntities(ctx context.Context, entities []*types.Entity) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	for _, e := range entities {
		r.ids = append(r.ids, e.ID)
	}
	return len(entities), nil
}

func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// createTestFile writes a file below dir, creating parent directories
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	return filePath
}

const (
	serviceSrc = `package demo

// Service answers requests.
type Service struct {
	Name string
}

func helper() int { return 1 }
`
	methodSrc = `package demo

// Start runs the service.
func (s *Service) Start() int {
	return helper()
}
`
	readmeSrc = `# Demo

Intro text.

## Usage

See [design](docs/design.md).
`
	designSrc = `# Design

Details.
`
)

// createDemoProject lays out a small module with a cross-file method and docs
func createDemoProject(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "go.mod", "module example.com/demo\n\ngo 1.25\n")
	createTestFile(t, dir, "service.go", serviceSrc)
	createTestFile(t, dir, "start.go", methodSrc)
	createTestFile(t, dir, "README.md", readmeSrc)
	createTestFile(t, dir, "docs/design.md", designSrc)
	return dir
}

func relTypes(rels []*types.Relationship) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = r.Type + ":" + r.SourceID + "->" + r.TargetID
	}
	sort.Strings(out)
	return out
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "main.go", "package main")
	createTestFile(t, dir, "main_test.go", "package main")
	createTestFile(t, dir, "README.md", "# x")
	createTestFile(t, dir, "notes.txt", "x")
	createTestFile(t, dir, "vendor/dep/dep.go", "package dep")
	createTestFile(t, dir, ".git/hooks/x.go", "package hooks")
	createTestFile(t, dir, "testdata/fixture.go", "package fixture")
	createTestFile(t, dir, "pkg/util/util.go", "package util")

	idx := New(setupTestStorage(t))

	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{
			name:   "defaults",
			config: *DefaultConfig(),
			want:   []string{"README.md", "main.go", "main_test.go", "pkg/util/util.go"},
		},
		{
			name:   "no tests no docs",
			config: Config{},
			want:   []string{"main.go", "pkg/util/util.go"},
		},
		{
			name:   "vendor",
			config: Config{IncludeVendor: true},
			want:   []string{"main.go", "pkg/util/util.go", "vendor/dep/dep.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := idx.discoverFiles(dir, &tt.config)
			require.NoError(t, err)

			var got []string
			for _, f := range files {
				rel, err := filepath.Rel(dir, f)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
			}
			sort.Strings(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexProject(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	dir := createDemoProject(t)

	idx := New(store)
	stats, err := idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)
	assert.Empty(t, stats.ErrorMessages)
	assert.Positive(t, stats.EntitiesStored)

	t.Run("entities", func(t *testing.T) {
		svc, err := store.GetEntity(ctx, parser.SymbolID("service.go", "Service"))
		require.NoError(t, err)
		assert.Equal(t, types.EntityStruct, svc.Type)
		assert.Equal(t, "example.com/demo.Service", svc.QualifiedName)

		start, err := store.GetEntity(ctx, parser.SymbolID("start.go", "Service.Start"))
		require.NoError(t, err)
		assert.Equal(t, types.EntityMethod, start.Type)

		pkg, err := store.GetEntity(ctx, parser.PackageID("example.com/demo"))
		require.NoError(t, err)
		assert.Equal(t, types.EntityPackage, pkg.Type)

		doc, err := store.GetEntity(ctx, parser.FileID("README.md"))
		require.NoError(t, err)
		assert.Equal(t, types.EntityDocument, doc.Type)
		assert.Equal(t, "Demo", doc.Name)
	})

	t.Run("cross-file method containment is resolved", func(t *testing.T) {
		rels, err := store.ListRelationships(ctx, types.RelationshipFilter{
			SourceID: parser.SymbolID("service.go", "Service"),
			Types:    []string{types.RelContains},
		})
		require.NoError(t, err)
		assert.Contains(t, relTypes(rels),
			"CONTAINS:service.go#Service->start.go#Service.Start")
	})

	t.Run("calls across files are resolved", func(t *testing.T) {
		rels, err := store.ListRelationships(ctx, types.RelationshipFilter{
			SourceID: parser.SymbolID("start.go", "Service.Start"),
			Types:    []string{types.RelCalls},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"CALLS:start.go#Service.Start->service.go#helper"}, relTypes(rels))
	})

	t.Run("markdown links are resolved", func(t *testing.T) {
		rels, err := store.ListRelationships(ctx, types.RelationshipFilter{
			TargetID: parser.FileID("docs/design.md"),
			Types:    []string{types.RelRelatesTo},
		})
		require.NoError(t, err)
		assert.Len(t, rels, 1)
	})

	t.Run("project stats", func(t *testing.T) {
		project, err := store.GetProject(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, "example.com/demo", project.ModuleName)
		assert.Equal(t, "1.25", project.GoVersion)
		assert.Equal(t, 4, project.TotalFiles)
		assert.Positive(t, project.TotalEntities)
		assert.False(t, project.LastIndexedAt.IsZero())
	})

	assert.Positive(t, stats.ReferencesResolved)
}

func TestIndexProject_Incremental(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	dir := createDemoProject(t)
	idx := New(store)

	_, err := idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)

	stats, err := idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
	assert.Equal(t, 4, stats.FilesSkipped)

	createTestFile(t, dir, "service.go", serviceSrc+"\n// Extra is new.\nfunc Extra() {}\n")
	stats, err = idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 3, stats.FilesSkipped)

	_, err = store.GetEntity(ctx, parser.SymbolID("service.go", "Extra"))
	require.NoError(t, err)

	// The method declared in the unchanged file stays attached to its type
	members, err := store.ListRelationships(ctx, types.RelationshipFilter{
		SourceID: parser.SymbolID("service.go", "Service"),
		TargetID: parser.SymbolID("start.go", "Service.Start"),
	})
	require.NoError(t, err)
	assert.Len(t, members, 1)

	// Package edges survive re-indexing without duplicates
	rels, err := store.ListRelationships(ctx, types.RelationshipFilter{
		SourceID: parser.PackageID("example.com/demo"),
		Types:    []string{types.RelContains},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CONTAINS:pkg:example.com/demo->service.go",
		"CONTAINS:pkg:example.com/demo->start.go",
	}, relTypes(rels))
}

func TestIndexProject_RemovesDeletedFiles(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	dir := createDemoProject(t)
	idx := New(store)

	_, err := idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "start.go")))
	stats, err := idx.IndexProject(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRemoved)

	_, err = store.GetEntity(ctx, parser.SymbolID("start.go", "Service.Start"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rels, err := store.ListRelationships(ctx, types.RelationshipFilter{EntityID: parser.FileID("start.go")})
	require.NoError(t, err)
	assert.Empty(t, rels)

	project, err := store.GetProject(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, project.TotalFiles)
}

func TestIndexProject_ParseErrorsAreNotFatal(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	dir := t.TempDir()
	createTestFile(t, dir, "go.mod", "module example.com/broken\n")
	createTestFile(t, dir, "ok.go", "package broken\n\nfunc Fine() {}\n")
	createTestFile(t, dir, "bad.go", "package broken\n\nfunc Broken( {\n")

	stats, err := New(store).IndexProject(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)

	project, err := store.GetProject(ctx, dir)
	require.NoError(t, err)
	file, err := store.GetFile(ctx, project.ID, "bad.go")
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
	assert.NotEmpty(t, *file.ParseError)

	_, err = store.GetEntity(ctx, parser.SymbolID("ok.go", "Fine"))
	assert.NoError(t, err)
}

func TestIndexProject_Embeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("stored entities are embedded", func(t *testing.T) {
		emb := &recordingEmbedder{}
		stats, err := New(setupTestStorage(t), WithEmbedder(emb)).IndexProject(ctx, createDemoProject(t), nil)
		require.NoError(t, err)
		assert.Equal(t, stats.EntitiesStored, stats.EmbeddingsGenerated)
		assert.Contains(t, emb.ids, parser.SymbolID("service.go", "Service"))
	})

	t.Run("skip embedding", func(t *testing.T) {
		emb := &recordingEmbedder{}
		cfg := DefaultConfig()
		cfg.SkipEmbedding = true
		stats, err := New(setupTestStorage(t), WithEmbedder(emb)).IndexProject(ctx, createDemoProject(t), cfg)
		require.NoError(t, err)
		assert.Zero(t, stats.EmbeddingsGenerated)
		assert.Empty(t, emb.ids)
	})

	t.Run("embedding failure is reported, not fatal", func(t *testing.T) {
		emb := &recordingEmbedder{err: errors.New("provider down")}
		stats, err := New(setupTestStorage(t), WithEmbedder(emb)).IndexProject(ctx, createDemoProject(t), nil)
		require.NoError(t, err)
		require.Len(t, stats.ErrorMessages, 1)
		assert.Contains(t, stats.ErrorMessages[0], "provider down")
	})
}

func TestIndexProject_OnIndexed(t *testing.T) {
	idx := New(setupTestStorage(t))
	var calls int
	idx.OnIndexed(func(s *Statistics) {
		calls++
		assert.Equal(t, 4, s.FilesIndexed)
	})

	_, err := idx.IndexProject(context.Background(), createDemoProject(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIndexProject_InvalidRoot(t *testing.T) {
	idx := New(setupTestStorage(t))

	_, err := idx.IndexProject(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := createTestFile(t, t.TempDir(), "x.go", "package x")
	_, err = idx.IndexProject(context.Background(), file, nil)
	assert.Error(t, err)
}

func TestIndexProject_ContextCancellation(t *testing.T) {
	dir := createDemoProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(setupTestStorage(t)).IndexProject(ctx, dir, nil)
	assert.Error(t, err)
}

func TestIndexProject_SmallBatches(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	dir := t.TempDir()
	createTestFile(t, dir, "go.mod", "module example.com/many\n")
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		createTestFile(t, dir, name+".go", "package many\n\nfunc "+name+"() {}\n")
	}

	stats, err := New(store).IndexProject(ctx, dir, &Config{Workers: 3, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, stats.FilesIndexed)

	for _, name := range []string{"a", "d", "g"} {
		_, err := store.GetEntity(ctx, parser.SymbolID(name+".go", name))
		assert.NoError(t, err)
	}
}

func TestComputeFileHash(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "a.go", "package a")
	b := createTestFile(t, dir, "b.go", "package a")
	c := createTestFile(t, dir, "c.go", "package c")

	ha, _, size, err := computeFileHash(a)
	require.NoError(t, err)
	assert.Equal(t, int64(len("package a")), size)

	hb, _, _, err := computeFileHash(b)
	require.NoError(t, err)
	hc, _, _, err := computeFileHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)

	_, _, _, err = computeFileHash(filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}

func TestParseGoMod(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "go.mod", "module github.com/acme/tool\n\ngo 1.25.4\n\nrequire (\n\tgithub.com/x/y v1.0.0\n)\n")

	info, err := parseGoMod(path)
	require.NoError(t, err)
	assert.Equal(t, "github.com/acme/tool", info.Module)
	assert.Equal(t, "1.25.4", info.GoVersion)

	_, err = parseGoMod(filepath.Join(dir, "missing.mod"))
	assert.Error(t, err)
}

func TestIndexLock(t *testing.T) {
	t.Run("exclusive", func(t *testing.T) {
		var lock IndexLock
		require.True(t, lock.TryAcquire())
		assert.True(t, lock.Held())
		assert.False(t, lock.TryAcquire())
		lock.Release()
		assert.False(t, lock.Held())
		assert.True(t, lock.TryAcquire())
		lock.Release()
	})

	t.Run("one winner among concurrent callers", func(t *testing.T) {
		var lock IndexLock
		const n = 100
		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0

		wg.Add(n)
		for range n {
			go func() {
				defer wg.Done()
				if lock.TryAcquire() {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})
}
