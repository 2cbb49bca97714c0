// Package storage provides SQLite-based persistence for the knowledge base.
//
// The storage layer manages:
//   - Project metadata
//   - File information and content hashes
//   - Entities (code symbols, files, packages, documents, sections)
//   - Typed, weighted relationships between entities
//   - Vector embeddings per entity
//   - Full-text search indexes
//
// # Database Schema
//
// Tables:
//   - projects: Project metadata (root path, module name)
//   - files: File paths and SHA-256 hashes
//   - entities: Addressable items with content, signature and summary
//   - entities_fts: FTS5 index over name, qualified name, signature, summary, content
//   - relationships: Directed edges (source, target, type, weight, metadata)
//   - embeddings: Little-endian float32 vectors keyed by entity id
//
// Relationship endpoints are plain entity ids without foreign keys, so an
// edge may point at an entity that is indexed later.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("/var/lib/ctxgraph/index.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.UpsertEntity(ctx, projectID, &fileID, &types.Entity{
//	    ID:   "github.com/acme/app/auth/login.go#Login",
//	    Type: types.EntityFunction,
//	    Name: "Login",
//	})
//
//	ids, err := store.SearchEntities(ctx, "login session", types.EntitySearchOptions{Limit: 20})
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.DeleteEntitiesByFile(ctx, fileID); err != nil {
//	    return err
//	}
//	// ... store the file's new entities and edges
//	return tx.Commit()
//
// Every Tx method runs on the transaction, including reads.
//
// # Build Modes
//
// The default (purego) build uses modernc.org/sqlite and computes cosine
// similarity in Go. Building with the sqlite_vec tag switches to
// github.com/mattn/go-sqlite3 and pushes similarity into SQL through
// vec_distance_cosine, falling back to Go when the function is unavailable.
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5" ./...
package storage
