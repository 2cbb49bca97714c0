// Package indexer builds and refreshes the knowledge graph of a project.
//
// IndexProject walks the project tree for Go and markdown files, skips files
// whose SHA-256 content hash matches the stored one, parses the rest
// concurrently and stores their entities and relationships in batched
// transactions. Edges whose target lives in another file arrive as
// qualified-name references and are resolved once every changed file is
// stored; references to code outside the project are dropped. Files that
// disappeared from disk are removed together with the edges touching them.
// Embeddings are generated last, for the entities written in this run.
//
// Watcher re-runs indexing when files change, debouncing bursts of events:
//
//	lock := &indexer.IndexLock{}
//	w, err := indexer.NewWatcher(root, indexer.ReindexOnChange(idx, root, nil, lock), nil)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	defer w.Stop()
package indexer
