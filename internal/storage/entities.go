package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dshills/ctxgraph/pkg/types"
)

const entityColumns = `id, type, name, qualified_name, file_path, start_line, end_line,
		       language, signature, summary, content, metadata`

// upsertEntityWithQuerier inserts or replaces an entity keyed by its id
func (s *SQLiteStorage) upsertEntityWithQuerier(ctx context.Context, q querier, projectID int64, fileID *int64, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}

	var metadata sql.NullString
	if len(entity.Metadata) > 0 {
		data, err := json.Marshal(entity.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode entity metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO entities (id, project_id, file_id, type, name, qualified_name, file_path,
		                      start_line, end_line, language, signature, summary, content, metadata,
		                      created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			file_id = excluded.file_id,
			type = excluded.type,
			name = excluded.name,
			qualified_name = excluded.qualified_name,
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			language = excluded.language,
			signature = excluded.signature,
			summary = excluded.summary,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		entity.ID, projectID, fileID, string(entity.Type), entity.Name, entity.QualifiedName,
		entity.FilePath, entity.StartLine, entity.EndLine, entity.Language, entity.Signature,
		entity.Summary, entity.Content, metadata, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertEntity(ctx context.Context, projectID int64, fileID *int64, entity *types.Entity) error {
	return s.upsertEntityWithQuerier(ctx, s.querier(), projectID, fileID, entity)
}

// scanEntity reads one entity row selected with entityColumns
func scanEntity(row rowScanner) (*types.Entity, error) {
	var e types.Entity
	var entityType string
	var qualifiedName, filePath, language, signature, summary, content, metadata sql.NullString
	var startLine, endLine sql.NullInt64

	err := row.Scan(&e.ID, &entityType, &e.Name, &qualifiedName, &filePath, &startLine, &endLine,
		&language, &signature, &summary, &content, &metadata)
	if err != nil {
		return nil, err
	}

	e.Type = types.EntityType(entityType)
	e.QualifiedName = qualifiedName.String
	e.FilePath = filePath.String
	e.StartLine = int(startLine.Int64)
	e.EndLine = int(endLine.Int64)
	e.Language = language.String
	e.Signature = signature.String
	e.Summary = summary.String
	e.Content = content.String

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of entity %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

// errEntityNotFound satisfies errors.Is for both ErrNotFound and types.ErrEntityNotFound
var errEntityNotFound = fmt.Errorf("%w: %w", ErrNotFound, types.ErrEntityNotFound)

// getEntityWhereWithQuerier returns the first entity matching a single-column condition
func (s *SQLiteStorage) getEntityWhereWithQuerier(ctx context.Context, q querier, column, value string) (*types.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE ` + column + ` = ? ORDER BY row_id LIMIT 1`
	entity, err := scanEntity(q.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, errEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	return s.getEntityWhereWithQuerier(ctx, s.querier(), "id", id)
}

func (s *SQLiteStorage) GetEntityByName(ctx context.Context, name string) (*types.Entity, error) {
	return s.getEntityWhereWithQuerier(ctx, s.querier(), "name", name)
}

func (s *SQLiteStorage) GetEntityByQualifiedName(ctx context.Context, qualifiedName string) (*types.Entity, error) {
	return s.getEntityWhereWithQuerier(ctx, s.querier(), "qualified_name", qualifiedName)
}

// listEntitiesByFileWithQuerier returns a file's entities in source order
func (s *SQLiteStorage) listEntitiesByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*types.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE file_id = ? ORDER BY start_line, row_id`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entities := make([]*types.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *SQLiteStorage) ListEntitiesByFile(ctx context.Context, fileID int64) ([]*types.Entity, error) {
	return s.listEntitiesByFileWithQuerier(ctx, s.querier(), fileID)
}

// listEntityIDsWithQuerier returns every entity id in id order
func (s *SQLiteStorage) listEntityIDsWithQuerier(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) ListEntityIDs(ctx context.Context) ([]string, error) {
	return s.listEntityIDsWithQuerier(ctx, s.querier())
}

// deleteEntitiesByFileWithQuerier removes a file's entities and the edges they own.
// Embeddings cascade through their foreign key.
func (s *SQLiteStorage) deleteEntitiesByFileWithQuerier(ctx context.Context, q querier, fileID int64) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM relationships
		WHERE source_id IN (SELECT id FROM entities WHERE file_id = ?)
	`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete relationships of file %d: %w", fileID, err)
	}

	_, err = q.ExecContext(ctx, `DELETE FROM entities WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete entities of file %d: %w", fileID, err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteEntitiesByFile(ctx context.Context, fileID int64) error {
	return s.deleteEntitiesByFileWithQuerier(ctx, s.querier(), fileID)
}

// searchEntitiesWithQuerier runs a BM25-ranked full-text search.
// Results are ordered best first; Score is the normalized BM25 score.
func (s *SQLiteStorage) searchEntitiesWithQuerier(ctx context.Context, q querier, text string, opts types.EntitySearchOptions) ([]types.ScoredID, error) {
	match := buildFTSQuery(text)
	if match == "" {
		return []types.ScoredID{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT e.id, bm25(entities_fts) AS score
		FROM entities_fts
		INNER JOIN entities e ON entities_fts.rowid = e.row_id
		WHERE entities_fts MATCH ?
	`
	args := []interface{}{match}
	query, args = applyTypeFilter(query, args, "e.type", opts.Types)

	// BM25 is lower-is-better
	query += " ORDER BY score, e.row_id LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.ScoredID, 0, limit)
	for rows.Next() {
		var id string
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			return nil, err
		}
		results = append(results, types.ScoredID{EntityID: id, Score: normalizeBM25(bm25)})
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) SearchEntities(ctx context.Context, text string, opts types.EntitySearchOptions) ([]types.ScoredID, error) {
	return s.searchEntitiesWithQuerier(ctx, s.querier(), text, opts)
}

// applyTypeFilter appends an IN clause for entity types
func applyTypeFilter(query string, args []interface{}, column string, entityTypes []types.EntityType) (string, []interface{}) {
	if len(entityTypes) == 0 {
		return query, args
	}
	placeholders := make([]string, len(entityTypes))
	for i, t := range entityTypes {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	query += " AND " + column + " IN (" + strings.Join(placeholders, ",") + ")"
	return query, args
}

// buildFTSQuery turns free text into an FTS5 OR-query of quoted terms.
// Quoting neutralizes FTS5 operators and syntax characters.
func buildFTSQuery(text string) string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// normalizeBM25 maps a BM25 score (negative, lower is better) into (0, 1]
func normalizeBM25(score float64) float64 {
	return 1.0 / (1.0 + math.Abs(score)/50.0)
}

// Transaction delegation

func (t *sqliteTx) UpsertEntity(ctx context.Context, projectID int64, fileID *int64, entity *types.Entity) error {
	return t.storage.upsertEntityWithQuerier(ctx, t.querier(), projectID, fileID, entity)
}

func (t *sqliteTx) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	return t.storage.getEntityWhereWithQuerier(ctx, t.querier(), "id", id)
}

func (t *sqliteTx) GetEntityByName(ctx context.Context, name string) (*types.Entity, error) {
	return t.storage.getEntityWhereWithQuerier(ctx, t.querier(), "name", name)
}

func (t *sqliteTx) GetEntityByQualifiedName(ctx context.Context, qualifiedName string) (*types.Entity, error) {
	return t.storage.getEntityWhereWithQuerier(ctx, t.querier(), "qualified_name", qualifiedName)
}

func (t *sqliteTx) ListEntitiesByFile(ctx context.Context, fileID int64) ([]*types.Entity, error) {
	return t.storage.listEntitiesByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) ListEntityIDs(ctx context.Context) ([]string, error) {
	return t.storage.listEntityIDsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteEntitiesByFile(ctx context.Context, fileID int64) error {
	return t.storage.deleteEntitiesByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchEntities(ctx context.Context, text string, opts types.EntitySearchOptions) ([]types.ScoredID, error) {
	return t.storage.searchEntitiesWithQuerier(ctx, t.querier(), text, opts)
}
