package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingsServer answers /embeddings requests with vectors whose first
// component is the input index, returned in reverse order.
func fakeEmbeddingsServer(t *testing.T, status *atomic.Int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if code := status.Load(); code != 0 {
			w.WriteHeader(int(code))
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}

		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(i), 1}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
}

func testProvider(t *testing.T, url string) *HTTPProvider {
	t.Helper()
	p, err := NewJinaProvider("test-key", NewCache(10),
		WithEndpoint(url),
		WithRateLimit(0, 0),
		WithRetry(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestHTTPProvider_Batch(t *testing.T) {
	var status, calls atomic.Int32
	server := fakeEmbeddingsServer(t, &status, &calls)
	defer server.Close()

	p := testProvider(t, server.URL)
	ctx := context.Background()

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"zero", "one", "two"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	for i, emb := range resp.Embeddings {
		assert.Equal(t, float32(i), emb.Vector[0], "response must be reordered by index")
		assert.Equal(t, ProviderJina, emb.Provider)
	}
	assert.Equal(t, DefaultJinaModel, resp.Model)
	assert.Equal(t, int32(1), calls.Load())

	// Cached texts never reach the server
	single, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "two"})
	require.NoError(t, err)
	assert.Equal(t, float32(2), single.Vector[0])
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "client error is permanent", status: http.StatusUnauthorized, wantCalls: 1},
		{name: "rate limited is retried", status: http.StatusTooManyRequests, wantCalls: 3},
		{name: "server error is retried", status: http.StatusBadGateway, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status, calls atomic.Int32
			status.Store(int32(tt.status))
			server := fakeEmbeddingsServer(t, &status, &calls)
			defer server.Close()

			p := testProvider(t, server.URL)
			_, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
			assert.ErrorIs(t, err, ErrProviderFailed)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestHTTPProvider_Validation(t *testing.T) {
	p := testProvider(t, "http://127.0.0.1:0")
	ctx := context.Background()

	_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestProviderConstructors(t *testing.T) {
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	_, err := NewJinaProvider("", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
	_, err = NewOpenAIProvider("", nil)
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	t.Setenv(EnvOpenAIAPIKey, "from-env")
	p, err := NewOpenAIProvider("", nil, WithModel("text-embedding-3-large"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Provider())
	assert.Equal(t, OpenAIDimension, p.Dimension())
	assert.Equal(t, "text-embedding-3-large", p.Model())
	assert.Equal(t, OpenAIEndpoint, p.endpoint)
}
