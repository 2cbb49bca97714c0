package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/config"
	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/pkg/types"
)

var shopFiles = map[string]string{
	"go.mod": "module example.com/shop\n\ngo 1.22\n",
	"store.go": `package shop

// UserRepository loads users from the database.
type UserRepository struct{}

// FindUser returns the user with the given id.
func (r *UserRepository) FindUser(id string) string {
	return lookup(id)
}

func lookup(id string) string { return id }
`,
	"handler.go": `package shop

// HandleLogin authenticates a user.
func HandleLogin(repo *UserRepository, id string) string {
	return repo.FindUser(id)
}
`,
	"README.md": "# Shop\n\nUser login and storage.\n",
}

func createShop(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range shopFiles {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTestEngine(t *testing.T, root string) *Engine {
	t.Helper()
	v := config.New()
	v.Set("root", root)
	v.Set("db_path", ":memory:")
	v.Set("embedding.provider", "local")
	v.Set("rerank.mode", config.RerankLexical)

	cfg, err := config.Load(v, "")
	require.NoError(t, err)

	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func indexedEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t, createShop(t))
	stats, err := e.Index(context.Background(), IndexOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, stats.FilesIndexed)
	return e
}

func TestStatusBeforeIndexing(t *testing.T) {
	e := newTestEngine(t, createShop(t))
	_, err := e.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestIndexAndStatus(t *testing.T) {
	e := indexedEngine(t)
	ctx := context.Background()

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.FilesCount)
	assert.Positive(t, status.EntitiesCount)
	assert.Positive(t, status.EmbeddingsCount)
	assert.Equal(t, "example.com/shop", status.Project.ModuleName)
}

func TestIndexRejectsConcurrentRun(t *testing.T) {
	e := newTestEngine(t, createShop(t))
	require.True(t, e.lock.TryAcquire())
	defer e.lock.Release()

	assert.True(t, e.Indexing())
	_, err := e.Index(context.Background(), IndexOptions{})
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}

func TestIndexOptionsOverride(t *testing.T) {
	e := newTestEngine(t, createShop(t))
	skip := false
	skipEmbedding := true

	cfg := e.indexConfig(IndexOptions{IncludeDocs: &skip, SkipEmbedding: &skipEmbedding})
	assert.False(t, cfg.IncludeDocs)
	assert.True(t, cfg.SkipEmbedding)
	assert.True(t, cfg.IncludeTests)

	stats, err := e.Index(context.Background(), IndexOptions{IncludeDocs: &skip, SkipEmbedding: &skipEmbedding})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.EmbeddingsGenerated)
}

func TestResolveRoot(t *testing.T) {
	e := newTestEngine(t, createShop(t))

	got, err := e.ResolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, e.Root(), got)

	got, err = e.ResolveRoot(e.Root() + string(filepath.Separator))
	require.NoError(t, err)
	assert.Equal(t, e.Root(), got)

	_, err = e.ResolveRoot(t.TempDir())
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestEntityLookup(t *testing.T) {
	e := indexedEngine(t)
	ctx := context.Background()

	byID, err := e.Entity(ctx, "store.go#lookup")
	require.NoError(t, err)
	assert.Equal(t, "lookup", byID.Name)

	byQualified, err := e.Entity(ctx, "example.com/shop.HandleLogin")
	require.NoError(t, err)
	assert.Equal(t, "handler.go#HandleLogin", byQualified.ID)

	byName, err := e.Entity(ctx, "UserRepository")
	require.NoError(t, err)
	assert.Equal(t, types.EntityStruct, byName.Type)

	_, err = e.Entity(ctx, "NoSuchThing")
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestSearchUsesConfiguredDefaults(t *testing.T) {
	e := indexedEngine(t)

	resp, err := e.Search(context.Background(), searcher.SearchRequest{Query: "UserRepository"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), searcher.DefaultLimit)

	names := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		names = append(names, r.Entity.Name)
	}
	assert.Contains(t, names, "UserRepository")

	_, err = e.Search(context.Background(), searcher.SearchRequest{Query: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSearchCacheInvalidatedByIndexing(t *testing.T) {
	e := indexedEngine(t)
	ctx := context.Background()
	req := searcher.SearchRequest{Query: "lookup", UseCache: true}

	_, err := e.Search(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, e.searcher.CacheLen())

	_, err = e.Index(ctx, IndexOptions{})
	require.NoError(t, err)
	assert.Zero(t, e.searcher.CacheLen())
}

func TestContext(t *testing.T) {
	e := indexedEngine(t)

	opts := e.AssembleOptions()
	assert.Equal(t, assembler.FormatStructured, opts.Format)

	result, err := e.Context(context.Background(), searcher.SearchRequest{Query: "FindUser"}, opts)
	require.NoError(t, err)
	require.NotEmpty(t, result.Search.Results)
	assert.Contains(t, result.Context.Text, "FindUser")
	assert.LessOrEqual(t, result.Context.TokenCount, opts.MaxTokens)
	assert.NotEmpty(t, result.Context.Sources)
}

func TestNeighborhood(t *testing.T) {
	e := indexedEngine(t)

	result, err := e.Neighborhood(context.Background(), "store.go", graph.NeighborhoodOptions{
		MaxDepth:  1,
		Direction: types.DirectionOut,
	})
	require.NoError(t, err)
	assert.Equal(t, "store.go", result.Center.ID)
	assert.Contains(t, result.Neighborhood.EntityIDs, "store.go#lookup")
	assert.Contains(t, result.Neighborhood.EntityIDs, "store.go#UserRepository")
	assert.Len(t, result.Entities, len(result.Neighborhood.EntityIDs))

	_, err = e.Neighborhood(context.Background(), "missing", graph.NeighborhoodOptions{})
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestPathsAndStats(t *testing.T) {
	e := indexedEngine(t)
	ctx := context.Background()

	paths, err := e.Paths(ctx, "pkg:example.com/shop", "lookup", graph.PathOptions{MaxDepth: 3})
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, []string{"pkg:example.com/shop", "store.go", "store.go#lookup"}, paths[0].EntityIDs)

	stats, err := e.GraphStats(ctx)
	require.NoError(t, err)
	assert.Positive(t, stats.RelationshipCount)
	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.EntityCount, status.EntitiesCount)
	assert.Positive(t, stats.RelationshipTypes[types.RelContains])
}
