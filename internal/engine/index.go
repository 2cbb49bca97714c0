package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/ctxgraph/internal/indexer"
	"github.com/dshills/ctxgraph/internal/storage"
)

// IndexOptions override the configured indexer settings for one run
type IndexOptions struct {
	IncludeTests  *bool
	IncludeVendor *bool
	IncludeDocs   *bool
	SkipEmbedding *bool
}

// indexConfig merges the configured settings with per-run overrides
func (e *Engine) indexConfig(opts IndexOptions) *indexer.Config {
	c := e.cfg.Index
	cfg := &indexer.Config{
		Workers:       c.Workers,
		BatchSize:     c.BatchSize,
		IncludeTests:  c.IncludeTests,
		IncludeVendor: c.IncludeVendor,
		IncludeDocs:   c.IncludeDocs,
		SkipEmbedding: c.SkipEmbedding,
	}
	if opts.IncludeTests != nil {
		cfg.IncludeTests = *opts.IncludeTests
	}
	if opts.IncludeVendor != nil {
		cfg.IncludeVendor = *opts.IncludeVendor
	}
	if opts.IncludeDocs != nil {
		cfg.IncludeDocs = *opts.IncludeDocs
	}
	if opts.SkipEmbedding != nil {
		cfg.SkipEmbedding = *opts.SkipEmbedding
	}
	return cfg
}

// Index runs an incremental index of the project root. It fails fast with
// ErrIndexingInProgress instead of waiting for a concurrent run.
func (e *Engine) Index(ctx context.Context, opts IndexOptions) (*indexer.Statistics, error) {
	if !e.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer e.lock.Release()

	return e.indexer.IndexProject(ctx, e.cfg.Root, e.indexConfig(opts))
}

// Indexing reports whether an indexing run is active
func (e *Engine) Indexing() bool {
	return e.lock.Held()
}

// IndexLock returns the lock serializing index runs
func (e *Engine) IndexLock() *indexer.IndexLock {
	return &e.lock
}

// Watch starts re-indexing the project root whenever Go or markdown files
// change. Batches arriving while another run holds the lock are skipped.
func (e *Engine) Watch(ctx context.Context) (*indexer.Watcher, error) {
	handler := indexer.ReindexOnChange(e.indexer, e.cfg.Root, e.indexConfig(IndexOptions{}), &e.lock)
	w, err := indexer.NewWatcher(e.cfg.Root, handler, &indexer.WatcherOptions{
		Debounce:   e.cfg.Index.Debounce,
		IgnoreDirs: indexer.DefaultWatcherOptions().IgnoreDirs,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	e.logger.Info("watching for changes", "root", e.cfg.Root)
	return w, nil
}

// Status reports index statistics for the project root
func (e *Engine) Status(ctx context.Context) (*storage.ProjectStatus, error) {
	project, err := e.store.GetProject(ctx, e.cfg.Root)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotIndexed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	status, err := e.store.GetStatus(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return status, nil
}
