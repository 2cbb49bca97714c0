package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	cache := NewCache(2)
	emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3}

	cache.Set("a", emb)
	emb.Vector[0] = 99 // Mutating the original must not affect the cache

	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)

	got.Vector[1] = 42 // Nor must mutating a returned copy
	again, _ := cache.Get("a")
	assert.Equal(t, float32(2), again.Vector[1])

	cache.Set("b", emb)
	cache.Set("c", emb)
	assert.Equal(t, 2, cache.Size())
	_, ok = cache.Get("a")
	assert.False(t, ok, "least recently used entry should be evicted")

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))

	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}), ErrInvalidInput)
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a"}}))
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash("abc"), 64)
	assert.NotEqual(t, cacheKey("jina", "m", "abc"), cacheKey("openai", "m", "abc"))
}

func TestEmbedCached_OnlyMissesReachBackend(t *testing.T) {
	cache := NewCache(10)
	var calls [][]string
	fn := func(_ context.Context, texts []string, _ string) ([][]float32, error) {
		calls = append(calls, append([]string(nil), texts...))
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text))}
		}
		return out, nil
	}

	ctx := context.Background()
	first, err := embedCached(ctx, cache, "p", "m", 2, []string{"a", "bb", "ccc"}, fn)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, calls)
	assert.Equal(t, []float32{3}, first[2].Vector)

	calls = nil
	second, err := embedCached(ctx, cache, "p", "m", 2, []string{"bb", "dddd", "a"}, fn)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"dddd"}}, calls)
	assert.Equal(t, []float32{2}, second[0].Vector)
	assert.Equal(t, []float32{4}, second[1].Vector)
	assert.Equal(t, []float32{1}, second[2].Vector)
}

func TestEmbedCached_CountMismatch(t *testing.T) {
	fn := func(context.Context, []string, string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	_, err := embedCached(context.Background(), nil, "p", "m", 10, []string{"a", "b"}, fn)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		got, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("transient")
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			attempts++
			return 0, errors.New("still down")
		})
		assert.EqualError(t, err, "still down")
		assert.Equal(t, 3, attempts)
	})

	t.Run("permanent errors stop immediately", func(t *testing.T) {
		attempts := 0
		cause := errors.New("bad request")
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) {
			attempts++
			return 0, permanent(cause)
		})
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryWithBackoff(cctx, cfg, func() (int, error) {
			return 0, errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
