// Package engine wires storage, indexing, search, graph traversal and
// context assembly for one project root. The MCP server and the CLI both
// drive an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/config"
	"github.com/dshills/ctxgraph/internal/embedder"
	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/internal/indexer"
	"github.com/dshills/ctxgraph/internal/query"
	"github.com/dshills/ctxgraph/internal/rerank"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/internal/semantic"
	"github.com/dshills/ctxgraph/internal/storage"
	"github.com/dshills/ctxgraph/pkg/types"
)

var (
	// ErrIndexingInProgress is returned when another indexing run holds the lock
	ErrIndexingInProgress = errors.New("indexing already in progress")

	// ErrNotIndexed is returned when the project root has never been indexed
	ErrNotIndexed = errors.New("project not indexed")

	// ErrOutsideRoot is returned for paths other than the engine's project root
	ErrOutsideRoot = errors.New("path is not the configured project root")
)

// Engine owns every component serving one project
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	store     storage.Storage
	embedder  embedder.Embedder
	graph     *graph.Store
	searcher  *searcher.Searcher
	assembler *assembler.Assembler
	indexer   *indexer.Indexer
	lock      indexer.IndexLock
}

// New opens the database at cfg.DBPath and builds the component graph
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	e, err := build(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// build assembles the components on an open store
func build(cfg *config.Config, store storage.Storage, logger *slog.Logger) (*Engine, error) {
	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var parserOpts []query.Option
	if cfg.Search.SynonymsFile != "" {
		table, err := query.LoadSynonyms(cfg.Search.SynonymsFile)
		if err != nil {
			return nil, err
		}
		parserOpts = append(parserOpts, query.WithSynonyms(table))
	}
	parser := query.New(parserOpts...)

	sem := semantic.New(emb, store, semantic.WithLogger(logger))
	graphStore := graph.New(store, graph.WithLogger(logger), graph.WithEntities(store))

	searchOpts := []searcher.Option{
		searcher.WithParser(parser),
		searcher.WithSemantic(sem),
		searcher.WithGraph(graphStore),
		searcher.WithLogger(logger),
		searcher.WithCache(cfg.Search.CacheSize, cfg.Search.CacheTTL),
	}
	reranker, err := newReranker(cfg.Rerank, parser, logger)
	if err != nil {
		return nil, err
	}
	if reranker != nil {
		searchOpts = append(searchOpts, searcher.WithReranker(reranker))
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		embedder: emb,
		graph:    graphStore,
		searcher: searcher.New(store, searchOpts...),
		assembler: assembler.New(
			assembler.WithRoot(cfg.Root),
			assembler.WithFileCacheSize(cfg.Context.FileCacheSize),
			assembler.WithLogger(logger),
		),
		indexer: indexer.New(store, indexer.WithEmbedder(sem), indexer.WithLogger(logger)),
	}

	// Cached responses and file lines go stale once the index changes
	e.indexer.OnIndexed(func(*indexer.Statistics) {
		e.searcher.InvalidateCache()
		e.assembler.ClearCache()
	})
	return e, nil
}

// newReranker builds the configured reranker; nil means no reranking
func newReranker(cfg config.RerankConfig, parser *query.Parser, logger *slog.Logger) (searcher.Reranker, error) {
	switch cfg.Mode {
	case "", config.RerankNone:
		return nil, nil
	case config.RerankLexical:
		return rerank.NewLexicalReranker(parser, cfg.LexicalBoost), nil
	case config.RerankLLM:
		llm, err := rerank.NewLLMReranker(cfg.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM reranker: %w", err)
		}
		return rerank.NewBreakerReranker(llm, cfg.Breaker, logger), nil
	}
	return nil, fmt.Errorf("unknown rerank mode %q", cfg.Mode)
}

// Close releases the embedder and the database
func (e *Engine) Close() error {
	var errs []error
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}

// Root returns the absolute project root
func (e *Engine) Root() string { return e.cfg.Root }

// Config returns the loaded configuration
func (e *Engine) Config() *config.Config { return e.cfg }

// Embedder returns the embedding provider in use
func (e *Engine) Embedder() embedder.Embedder { return e.embedder }

// ResolveRoot validates a caller supplied project path. Empty means the
// configured root; anything else must name the same directory.
func (e *Engine) ResolveRoot(path string) (string, error) {
	if path == "" {
		return e.cfg.Root, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if filepath.Clean(abs) != filepath.Clean(e.cfg.Root) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, abs)
	}
	return e.cfg.Root, nil
}

// Entity looks up an entity by id, then qualified name, then short name
func (e *Engine) Entity(ctx context.Context, ref string) (*types.Entity, error) {
	lookups := []func(context.Context, string) (*types.Entity, error){
		e.store.GetEntity,
		e.store.GetEntityByQualifiedName,
		e.store.GetEntityByName,
	}
	for _, lookup := range lookups {
		entity, err := lookup(ctx, ref)
		if err == nil {
			return entity, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrEntityNotFound, ref)
}

// Entities hydrates ids, skipping ids that no longer resolve
func (e *Engine) Entities(ctx context.Context, ids []string) ([]*types.Entity, error) {
	out := make([]*types.Entity, 0, len(ids))
	for _, id := range ids {
		entity, err := e.store.GetEntity(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
