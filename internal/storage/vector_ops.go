package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

// Embedding operations

// upsertEmbeddingWithQuerier stores or replaces the embedding of an entity
func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (entity_id, vector, dimension, provider, model, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		embedding.EntityID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, embedding.ContentHash[:], now).Scan(&embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

// getEmbeddingWithQuerier loads the embedding of an entity
func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, entityID string) (*Embedding, error) {
	query := `
		SELECT id, entity_id, vector, dimension, provider, model, content_hash, created_at
		FROM embeddings
		WHERE entity_id = ?
	`
	var embedding Embedding
	var hash []byte
	err := q.QueryRowContext(ctx, query, entityID).Scan(
		&embedding.ID, &embedding.EntityID, &embedding.Vector, &embedding.Dimension,
		&embedding.Provider, &embedding.Model, &hash, &embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(embedding.ContentHash[:], hash)
	return &embedding, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, entityID string) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.querier(), entityID)
}

// Vector search

// searchVectorWithQuerier performs vector similarity search using cosine similarity
func (s *SQLiteStorage) searchVectorWithQuerier(ctx context.Context, q querier, queryVector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	if len(queryVector) == 0 {
		return []types.ScoredID{}, nil
	}

	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		results, err := searchVectorOptimized(ctx, q, queryVector, opts)
		if err == nil {
			return results, nil
		}
		// The extension may not be loaded into this connection
	}
	return searchVectorFallback(ctx, q, queryVector, opts)
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	return s.searchVectorWithQuerier(ctx, s.querier(), vector, opts)
}

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, q querier, queryVector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns distance (lower is better); convert to similarity
	query := `
		SELECT
			e.id AS entity_id,
			1.0 - vec_distance_cosine(em.vector, ?) AS similarity
		FROM embeddings em
		INNER JOIN entities e ON e.id = em.entity_id
		WHERE em.dimension = ?
	`
	args := []interface{}{queryVectorBlob, len(queryVector)}
	query, args = applyTypeFilter(query, args, "e.type", opts.EntityTypes)

	if opts.MinScore > 0 {
		query += " AND (1.0 - vec_distance_cosine(em.vector, ?)) >= ?"
		args = append(args, queryVectorBlob, opts.MinScore)
	}

	query += " ORDER BY similarity DESC, e.row_id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.ScoredID, 0)
	for rows.Next() {
		var result types.ScoredID
		if err := rows.Scan(&result.EntityID, &result.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// searchVectorFallback performs vector search using Go-based cosine similarity computation
func searchVectorFallback(ctx context.Context, q querier, queryVector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	query := `
		SELECT e.id, em.vector
		FROM embeddings em
		INNER JOIN entities e ON e.id = em.entity_id
		WHERE em.dimension = ?
	`
	args := []interface{}{len(queryVector)}
	query, args = applyTypeFilter(query, args, "e.type", opts.EntityTypes)
	query += " ORDER BY e.row_id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, opts.MinScore)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, opts.Limit), nil
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, minScore float64) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var entityID string
		var vectorBlob []byte
		if err := rows.Scan(&entityID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)
		if minScore > 0 && similarity < minScore {
			continue
		}

		candidates = append(candidates, candidate{entityID: entityID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults keeps the top candidates; a non-positive limit keeps all
func buildVectorResults(candidates []candidate, limit int) []types.ScoredID {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]types.ScoredID, limit)
	for i := 0; i < limit; i++ {
		results[i] = types.ScoredID{
			EntityID: candidates[i].entityID,
			Score:    candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents an entity with its similarity score
type candidate struct {
	entityID string
	score    float64
}

// sortCandidates sorts candidates by score in descending order; ties keep row order
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// SerializeVector encodes a vector for the embeddings table
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a vector from the embeddings table
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

// Transaction delegation

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, entityID string) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.querier(), entityID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	return t.storage.searchVectorWithQuerier(ctx, t.querier(), vector, opts)
}
