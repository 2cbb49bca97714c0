package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctxgraph/internal/parser"
	"github.com/dshills/ctxgraph/internal/storage"
	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	DefaultBatchSize = 20

	// maxFileBytes skips generated or vendored blobs that would dominate the index
	maxFileBytes = 2 << 20
)

// EntityEmbedder embeds stored entities for the semantic strategy
type EntityEmbedder interface {
	IndexEntities(ctx context.Context, entities []*types.Entity) (int, error)
}

// Indexer coordinates the indexing pipeline: discover -> parse -> store -> resolve -> embed
type Indexer struct {
	parser   *parser.Parser
	storage  storage.Storage
	embedder EntityEmbedder
	logger   *slog.Logger

	mu        sync.Mutex
	onIndexed []func(*Statistics)
}

// Config contains configuration for the indexer
type Config struct {
	Workers       int  // Number of concurrent parse workers (default: runtime.NumCPU())
	BatchSize     int  // Number of files to commit per transaction (default: 20)
	IncludeTests  bool // Whether to index _test.go files
	IncludeVendor bool // Whether to index the vendor directory
	IncludeDocs   bool // Whether to index markdown documents
	SkipEmbedding bool // Store entities without generating embeddings
}

// DefaultConfig returns the configuration used when IndexProject gets nil
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		BatchSize:    DefaultBatchSize,
		IncludeTests: true,
		IncludeDocs:  true,
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	FilesIndexed         int
	FilesSkipped         int
	FilesFailed          int
	FilesRemoved         int
	EntitiesStored       int
	RelationshipsCreated int
	ReferencesResolved   int
	ReferencesUnresolved int
	EmbeddingsGenerated  int
	Duration             time.Duration
	ErrorMessages        []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithEmbedder enables embedding generation after entities are stored
func WithEmbedder(e EntityEmbedder) Option {
	return func(idx *Indexer) { idx.embedder = e }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// New creates a new Indexer instance
func New(store storage.Storage, opts ...Option) *Indexer {
	idx := &Indexer{
		parser:  parser.New(),
		storage: store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// OnIndexed registers a callback run after every successful IndexProject,
// typically a search cache invalidation
func (idx *Indexer) OnIndexed(fn func(*Statistics)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.onIndexed = append(idx.onIndexed, fn)
}

// parsedFile is a changed file ready to be stored
type parsedFile struct {
	relPath  string
	language string
	hash     [32]byte
	modTime  time.Time
	size     int64
	existing *storage.File
	result   *types.ParseResult
}

// IndexProject indexes every Go and markdown file under rootPath. Unchanged
// files are skipped, files gone from disk are removed, and cross-file
// references are resolved once all changed files are stored.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	ctx, span := startIndexSpan(ctx, absRoot)
	defer span.End()

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	project, err := idx.getOrCreateProject(ctx, absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	files, err := idx.discoverFiles(absRoot, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	parsed, err := idx.parseFiles(ctx, project, files, config, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to parse files: %w", err)
	}

	var refs []types.RelationshipRef
	var stored []*types.Entity
	for i := 0; i < len(parsed); i += config.BatchSize {
		end := min(i+config.BatchSize, len(parsed))
		batchEntities, batchRefs, err := idx.storeBatch(ctx, project, parsed[i:end], stats)
		if err != nil {
			return nil, fmt.Errorf("failed to store files: %w", err)
		}
		stored = append(stored, batchEntities...)
		refs = append(refs, batchRefs...)
	}

	if err := idx.removeDeleted(ctx, project, files, stats); err != nil {
		return nil, fmt.Errorf("failed to remove deleted files: %w", err)
	}

	if err := idx.resolveReferences(ctx, refs, stats); err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}

	if idx.embedder != nil && !config.SkipEmbedding && len(stored) > 0 {
		n, err := idx.embedder.IndexEntities(ctx, stored)
		stats.EmbeddingsGenerated = n
		if err != nil {
			idx.logger.Warn("embedding generation incomplete", "error", err, "written", n)
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("embeddings: %v", err))
		}
	}

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	setIndexSpanResult(span, stats)
	recordIndexMetrics(ctx, stats)
	idx.logger.Info("indexing complete",
		"root", absRoot,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"removed", stats.FilesRemoved,
		"entities", stats.EntitiesStored,
		"duration", stats.Duration,
	)

	idx.mu.Lock()
	callbacks := append([]func(*Statistics){}, idx.onIndexed...)
	idx.mu.Unlock()
	for _, fn := range callbacks {
		fn(stats)
	}
	return stats, nil
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	modInfo, modErr := parseGoMod(filepath.Join(rootPath, "go.mod"))

	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		if modErr == nil && modInfo.Module != project.ModuleName {
			project.ModuleName = modInfo.Module
			project.GoVersion = modInfo.GoVersion
		}
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
	}
	if modErr == nil {
		project.ModuleName = modInfo.Module
		project.GoVersion = modInfo.GoVersion
	}

	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// discoverFiles finds the Go and markdown files of the project
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.IncludeVendor && info.Name() == "vendor" {
				return filepath.SkipDir
			}
			if strings.HasPrefix(info.Name(), ".") || info.Name() == "testdata" || info.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || info.Size() > maxFileBytes {
			return nil
		}

		switch {
		case strings.HasSuffix(path, ".go"):
			if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
				return nil
			}
		case parser.IsMarkdown(path):
			if !config.IncludeDocs {
				return nil
			}
		default:
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// parseFiles hashes and parses files concurrently. Unchanged files are
// counted as skipped; unreadable files as failed. The result keeps the
// discovery order.
func (idx *Indexer) parseFiles(ctx context.Context, project *storage.Project, files []string, config *Config, stats *Statistics) ([]*parsedFile, error) {
	out := make([]*parsedFile, len(files))
	failures := make([]error, len(files))
	skipped := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, skip, err := idx.parseFile(gctx, project, path)
			switch {
			case err != nil:
				failures[i] = err
			case skip:
				skipped[i] = true
			default:
				out[i] = pf
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	parsed := make([]*parsedFile, 0, len(files))
	for i, pf := range out {
		switch {
		case failures[i] != nil:
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", files[i], failures[i]))
			idx.logger.Warn("failed to index file", "file", files[i], "error", failures[i])
		case skipped[i]:
			stats.FilesSkipped++
		case pf != nil:
			parsed = append(parsed, pf)
		}
	}
	return parsed, nil
}

// parseFile returns skip=true when the stored hash matches the file on disk
func (idx *Indexer) parseFile(ctx context.Context, project *storage.Project, path string) (*parsedFile, bool, error) {
	relPath, err := filepath.Rel(project.RootPath, path)
	if err != nil {
		return nil, false, err
	}
	relPath = filepath.ToSlash(relPath)

	hash, modTime, size, err := computeFileHash(path)
	if err != nil {
		return nil, false, err
	}

	existing, err := idx.storage.GetFile(ctx, project.ID, relPath)
	switch {
	case err == nil:
		if existing.ContentHash == hash {
			return nil, true, nil
		}
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	default:
		return nil, false, err
	}

	info := parser.FileInfo{
		Path:       path,
		RelPath:    relPath,
		ImportPath: parser.ImportPathFor(project.ModuleName, relPath),
	}

	pf := &parsedFile{relPath: relPath, hash: hash, modTime: modTime, size: size, existing: existing}
	if parser.IsMarkdown(path) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read file: %w", err)
		}
		pf.language = parser.LanguageMarkdown
		pf.result = idx.parser.ParseMarkdown(info, src)
		return pf, false, nil
	}

	result, err := idx.parser.ParseFile(info)
	if err != nil {
		return nil, false, err
	}
	pf.language = parser.LanguageGo
	pf.result = result
	return pf, false, nil
}

// storeBatch writes a batch of parsed files in one transaction. It returns
// the stored entities and the references left for resolution.
func (idx *Indexer) storeBatch(ctx context.Context, project *storage.Project, batch []*parsedFile, stats *Statistics) ([]*types.Entity, []types.RelationshipRef, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var entities []*types.Entity
	var refs []types.RelationshipRef
	var created int
	for _, pf := range batch {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		fileEntities, n, err := idx.storeFile(ctx, tx, project, pf)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", pf.relPath, err)
		}
		entities = append(entities, fileEntities...)
		refs = append(refs, pf.result.References...)
		created += n
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.FilesIndexed += len(batch)
	stats.EntitiesStored += len(entities)
	stats.RelationshipsCreated += created
	return entities, refs, nil
}

// storeFile replaces the stored entities of one file. Package entities are
// shared by every file of the package and are stored without a file.
func (idx *Indexer) storeFile(ctx context.Context, store storage.Storage, project *storage.Project, pf *parsedFile) ([]*types.Entity, int, error) {
	var carried []*types.Relationship
	if pf.existing != nil {
		var err error
		carried, err = foreignMembers(ctx, store, pf.existing.ID, pf.relPath)
		if err != nil {
			return nil, 0, err
		}
		if err := store.DeleteEntitiesByFile(ctx, pf.existing.ID); err != nil {
			return nil, 0, fmt.Errorf("failed to delete old entities: %w", err)
		}
	}

	file := &storage.File{
		ProjectID:   project.ID,
		FilePath:    pf.relPath,
		PackageName: pf.result.PackageName,
		Language:    pf.language,
		ContentHash: pf.hash,
		ModTime:     pf.modTime,
		SizeBytes:   pf.size,
	}
	if pf.result.HasErrors() {
		msg := pf.result.Errors[0].Message
		file.ParseError = &msg
	}
	if err := store.UpsertFile(ctx, file); err != nil {
		return nil, 0, err
	}

	entities := make([]*types.Entity, 0, len(pf.result.Entities))
	ids := make(map[string]bool, len(pf.result.Entities))
	for i := range pf.result.Entities {
		e := &pf.result.Entities[i]
		ids[e.ID] = true
		fileID := &file.ID
		if e.Type == types.EntityPackage {
			fileID = nil
		}
		if err := store.UpsertEntity(ctx, project.ID, fileID, e); err != nil {
			return nil, 0, fmt.Errorf("failed to store entity: %w", err)
		}
		entities = append(entities, e)
	}

	created := 0
	for i := range pf.result.Relationships {
		ok, err := ensureRelationship(ctx, store, &pf.result.Relationships[i])
		if err != nil {
			return nil, 0, fmt.Errorf("failed to store relationship: %w", err)
		}
		if ok {
			created++
		}
	}
	for _, rel := range carried {
		if !ids[rel.SourceID] {
			continue
		}
		rel.ID = ""
		if _, err := ensureRelationship(ctx, store, rel); err != nil {
			return nil, 0, fmt.Errorf("failed to restore relationship: %w", err)
		}
	}
	return entities, created, nil
}

// foreignMembers returns the CONTAINS edges from this file's types to
// methods declared in other files. Those edges were resolved from the other
// files' references, which are not re-parsed when only this file changes.
func foreignMembers(ctx context.Context, store storage.Storage, fileID int64, relPath string) ([]*types.Relationship, error) {
	entities, err := store.ListEntitiesByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list old entities: %w", err)
	}

	var out []*types.Relationship
	for _, e := range entities {
		if !e.Type.IsClassLike() {
			continue
		}
		rels, err := store.ListRelationships(ctx, types.RelationshipFilter{
			SourceID: e.ID,
			Types:    []string{types.RelContains},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", e.ID, err)
		}
		for _, r := range rels {
			if !strings.HasPrefix(r.TargetID, relPath+"#") {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// resolveReferences turns qualified-name references into edges. References
// whose target was never indexed, such as standard library calls, are dropped.
func (idx *Indexer) resolveReferences(ctx context.Context, refs []types.RelationshipRef, stats *Statistics) error {
	if len(refs) == 0 {
		return nil
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	targets := make(map[string]string)
	for _, ref := range refs {
		targetID, seen := targets[ref.TargetQualifiedName]
		if !seen {
			target, err := tx.GetEntityByQualifiedName(ctx, ref.TargetQualifiedName)
			switch {
			case err == nil:
				targetID = target.ID
			case errors.Is(err, storage.ErrNotFound):
			default:
				return err
			}
			targets[ref.TargetQualifiedName] = targetID
		}
		if targetID == "" || targetID == ref.SourceID {
			stats.ReferencesUnresolved++
			continue
		}

		rel := &types.Relationship{SourceID: ref.SourceID, TargetID: targetID, Type: ref.Type}
		if ref.Inverse {
			rel.SourceID, rel.TargetID = targetID, ref.SourceID
		}
		ok, err := ensureRelationship(ctx, tx, rel)
		if err != nil {
			return err
		}
		stats.ReferencesResolved++
		if ok {
			stats.RelationshipsCreated++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	idx.logger.Debug("references resolved", "resolved", stats.ReferencesResolved, "unresolved", stats.ReferencesUnresolved)
	return nil
}

// ensureRelationship creates rel unless an edge with the same endpoints and
// type exists. Edges owned by shared package entities survive re-indexing
// of a file, so blind inserts would duplicate them.
func ensureRelationship(ctx context.Context, store storage.Storage, rel *types.Relationship) (bool, error) {
	existing, err := store.ListRelationships(ctx, types.RelationshipFilter{
		SourceID: rel.SourceID,
		TargetID: rel.TargetID,
		Types:    []string{rel.Type},
		Limit:    1,
	})
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err := store.CreateRelationship(ctx, rel); err != nil {
		return false, err
	}
	return true, nil
}

// removeDeleted drops stored files that are no longer on disk along with
// their entities and every edge touching those entities
func (idx *Indexer) removeDeleted(ctx context.Context, project *storage.Project, files []string, stats *Statistics) error {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(project.RootPath, f)
		if err != nil {
			continue
		}
		present[filepath.ToSlash(rel)] = true
	}

	storedFiles, err := idx.storage.ListFiles(ctx, project.ID)
	if err != nil {
		return err
	}

	var gone []*storage.File
	for _, f := range storedFiles {
		if !present[f.FilePath] {
			gone = append(gone, f)
		}
	}
	if len(gone) == 0 {
		return nil
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range gone {
		owned, err := tx.ListEntitiesByFile(ctx, f.ID)
		if err != nil {
			return err
		}
		for _, e := range owned {
			inbound, err := tx.ListRelationships(ctx, types.RelationshipFilter{TargetID: e.ID})
			if err != nil {
				return err
			}
			for _, rel := range inbound {
				if err := tx.DeleteRelationship(ctx, rel.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			}
		}
		if err := tx.DeleteEntitiesByFile(ctx, f.ID); err != nil {
			return err
		}
		if err := tx.DeleteFile(ctx, f.ID); err != nil {
			return err
		}
		idx.logger.Debug("removed deleted file", "file", f.FilePath)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	stats.FilesRemoved = len(gone)
	return nil
}

// updateProjectStats refreshes the project's file and entity counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalFiles = status.FilesCount
	project.TotalEntities = status.EntitiesCount
	project.LastIndexedAt = time.Now()
	return idx.storage.UpdateProject(ctx, project)
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}

// goModInfo contains parsed go.mod information
type goModInfo struct {
	Module    string
	GoVersion string
}

// parseGoMod extracts basic info from go.mod file
func parseGoMod(goModPath string) (*goModInfo, error) {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, err
	}

	info := &goModInfo{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			info.Module = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module")), `"`)
		} else if strings.HasPrefix(line, "go ") {
			info.GoVersion = strings.TrimSpace(strings.TrimPrefix(line, "go"))
		}
	}
	return info, nil
}
