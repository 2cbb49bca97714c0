// Package semantic connects an embedder to the vector index: it embeds
// entities for storage and answers similarity queries for free text.
package semantic

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/ctxgraph/internal/embedder"
	"github.com/dshills/ctxgraph/internal/storage"
	"github.com/dshills/ctxgraph/pkg/types"
)

// MaxEmbedChars caps the text sent to the embedder per entity
const MaxEmbedChars = 8000

// VectorStore persists and searches entity embeddings
type VectorStore interface {
	UpsertEmbedding(ctx context.Context, embedding *storage.Embedding) error
	GetEmbedding(ctx context.Context, entityID string) (*storage.Embedding, error)
	SearchVector(ctx context.Context, vector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error)
}

// Backend embeds entities and finds entities similar to a text
type Backend struct {
	embedder  embedder.Embedder
	store     VectorStore
	logger    *slog.Logger
	batchSize int
}

// Option configures a Backend
type Option func(*Backend)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBatchSize sets how many texts are embedded per provider call
func WithBatchSize(n int) Option {
	return func(b *Backend) {
		if n > 0 && n <= embedder.MaxBatchSize {
			b.batchSize = n
		}
	}
}

// New creates a semantic backend
func New(emb embedder.Embedder, store VectorStore, opts ...Option) *Backend {
	b := &Backend{
		embedder:  emb,
		store:     store,
		logger:    slog.Default(),
		batchSize: embedder.DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FindSimilar embeds text and returns the most similar entities, highest
// similarity first
func (b *Backend) FindSimilar(ctx context.Context, text string, opts types.SimilarityOptions) ([]types.ScoredID, error) {
	if strings.TrimSpace(text) == "" {
		return []types.ScoredID{}, nil
	}

	emb, err := b.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := b.store.SearchVector(ctx, emb.Vector, opts)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

// IndexEntities embeds and stores the given entities. Entities whose text
// is unchanged since their stored embedding are skipped. It returns the
// number of embeddings written.
func (b *Backend) IndexEntities(ctx context.Context, entities []*types.Entity) (int, error) {
	type pending struct {
		entityID string
		text     string
		hash     [32]byte
	}

	var todo []pending
	for _, e := range entities {
		text := EntityText(e)
		if text == "" {
			continue
		}
		hash := sha256.Sum256([]byte(text))

		existing, err := b.store.GetEmbedding(ctx, e.ID)
		switch {
		case err == nil && existing.ContentHash == hash && existing.Provider == b.embedder.Provider():
			continue
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return 0, fmt.Errorf("failed to load embedding for %s: %w", e.ID, err)
		}
		todo = append(todo, pending{entityID: e.ID, text: text, hash: hash})
	}

	written := 0
	for start := 0; start < len(todo); start += b.batchSize {
		end := min(start+b.batchSize, len(todo))
		batch := todo[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		resp, err := b.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return written, fmt.Errorf("failed to embed batch: %w", err)
		}

		for i, emb := range resp.Embeddings {
			record := &storage.Embedding{
				EntityID:    batch[i].entityID,
				Vector:      storage.SerializeVector(emb.Vector),
				Dimension:   len(emb.Vector),
				Provider:    resp.Provider,
				Model:       resp.Model,
				ContentHash: batch[i].hash,
			}
			if err := b.store.UpsertEmbedding(ctx, record); err != nil {
				return written, fmt.Errorf("failed to store embedding for %s: %w", batch[i].entityID, err)
			}
			written++
		}
		b.logger.Debug("embedded batch", "size", len(batch), "provider", resp.Provider)
	}
	return written, nil
}
