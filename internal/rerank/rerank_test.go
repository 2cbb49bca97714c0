package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

func result(id, name string, score float64) types.SearchResult {
	return types.SearchResult{
		Entity: &types.Entity{ID: id, Type: types.EntityFunction, Name: name, QualifiedName: "pkg." + name},
		Score:  score,
		Source: types.StrategyKeyword,
	}
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entity.ID
	}
	return out
}

func TestLexicalReranker_BoostsKeywordMatches(t *testing.T) {
	r := NewLexicalReranker(nil, 0)
	in := []types.SearchResult{
		result("a", "OpenFile", 0.30),
		result("b", "ValidateToken", 0.25),
		result("c", "ParseConfig", 0.20),
	}

	out, err := r.Rerank(context.Background(), "validate token", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids(out))
	assert.InDelta(t, 0.25*1.5, out[0].Score, 1e-9)

	// input untouched
	assert.Equal(t, "a", in[0].Entity.ID)
	assert.InDelta(t, 0.25, in[1].Score, 1e-9)
}

func TestLexicalReranker_NoKeywordsKeepsOrder(t *testing.T) {
	r := NewLexicalReranker(nil, 0)
	in := []types.SearchResult{result("a", "A", 0.2), result("b", "B", 0.5)}

	out, err := r.Rerank(context.Background(), "the", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
}

// fakeChatServer replies to chat completions with the given content
func fakeChatServer(t *testing.T, content string, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if !assert.Equal(t, "/v1/chat/completions", r.URL.Path) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req openai.ChatCompletionRequest
		if !assert.NoError(t, json.Unmarshal(body, &req)) {
			return
		}
		assert.Len(t, req.Messages, 2)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "cmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLLM(t *testing.T, srv *httptest.Server, cfg LLMConfig) *LLMReranker {
	t.Helper()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1"
	r, err := NewLLMReranker(cfg, nil)
	require.NoError(t, err)
	return r
}

func TestLLMReranker_ReordersAndDrops(t *testing.T) {
	srv := fakeChatServer(t, `{"scores":[{"index":2,"score":0.9},{"index":0,"score":0.4}]}`, http.StatusOK, nil)
	r := newTestLLM(t, srv, LLMConfig{})

	in := []types.SearchResult{result("a", "A", 0.3), result("b", "B", 0.2), result("c", "C", 0.1)}
	out, err := r.Rerank(context.Background(), "find c", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(out))
	assert.InDelta(t, 0.9, out[0].Score, 1e-9)
}

func TestLLMReranker_MinScoreAndOverflow(t *testing.T) {
	srv := fakeChatServer(t, "```json\n{\"scores\":[{\"index\":0,\"score\":0.1},{\"index\":1,\"score\":0.8},{\"index\":7,\"score\":1}]}\n```", http.StatusOK, nil)
	r := newTestLLM(t, srv, LLMConfig{MaxCandidates: 2, MinScore: 0.2})

	in := []types.SearchResult{result("a", "A", 0.3), result("b", "B", 0.2), result("c", "C", 0.1)}
	out, err := r.Rerank(context.Background(), "q", in)
	require.NoError(t, err)
	// a scored below MinScore, c was never sent and stays at the tail
	assert.Equal(t, []string{"b", "c"}, ids(out))
}

func TestLLMReranker_Errors(t *testing.T) {
	in := []types.SearchResult{result("a", "A", 0.3), result("b", "B", 0.2)}

	t.Run("garbage reply", func(t *testing.T) {
		srv := fakeChatServer(t, "not json", http.StatusOK, nil)
		_, err := newTestLLM(t, srv, LLMConfig{}).Rerank(context.Background(), "q", in)
		assert.ErrorIs(t, err, ErrNoScores)
	})

	t.Run("empty scores", func(t *testing.T) {
		srv := fakeChatServer(t, `{"scores":[]}`, http.StatusOK, nil)
		_, err := newTestLLM(t, srv, LLMConfig{}).Rerank(context.Background(), "q", in)
		assert.ErrorIs(t, err, ErrNoScores)
	})

	t.Run("server error", func(t *testing.T) {
		srv := fakeChatServer(t, "", http.StatusInternalServerError, nil)
		_, err := newTestLLM(t, srv, LLMConfig{}).Rerank(context.Background(), "q", in)
		assert.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewLLMReranker(LLMConfig{}, nil)
		assert.Error(t, err)
	})
}

func TestBuildRerankPrompt(t *testing.T) {
	e := result("a", "Open", 1)
	e.Entity.FilePath = "fs/open.go"
	e.Entity.StartLine = 12
	e.Entity.Signature = "func Open(name string) (*File, error)"
	e.Entity.Content = strings.Repeat("x", 1000)

	prompt := buildRerankPrompt("open file", []types.SearchResult{e})
	assert.Contains(t, prompt, "Query: open file")
	assert.Contains(t, prompt, "[0] function pkg.Open (fs/open.go:12)")
	assert.Contains(t, prompt, "func Open(name string)")
	assert.NotContains(t, prompt, "xxxx")
}

type stubReranker struct {
	err   error
	calls atomic.Int32
}

func (s *stubReranker) Rerank(_ context.Context, _ string, results []types.SearchResult) ([]types.SearchResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return results, nil
}

func TestBreakerReranker_TripsOpen(t *testing.T) {
	stub := &stubReranker{err: errors.New("model down")}
	cfg := DefaultBreakerConfig()
	b := NewBreakerReranker(stub, cfg, nil)
	in := []types.SearchResult{result("a", "A", 1)}

	for range 3 {
		_, err := b.Rerank(context.Background(), "q", in)
		assert.EqualError(t, err, "model down")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Rerank(context.Background(), "q", in)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestBreakerReranker_PassesThrough(t *testing.T) {
	stub := &stubReranker{}
	b := NewBreakerReranker(stub, DefaultBreakerConfig(), nil)
	in := []types.SearchResult{result("a", "A", 1), result("b", "B", 0.5)}

	out, err := b.Rerank(context.Background(), "q", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(out))
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
