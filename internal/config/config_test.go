package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/rerank"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ctxgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, cfg.Root)
	assert.Equal(t, filepath.Join(wd, DataDir, "index.db"), cfg.DBPath)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "pretty", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Index.BatchSize)
	assert.True(t, cfg.Index.IncludeTests)
	assert.True(t, cfg.Index.IncludeDocs)
	assert.False(t, cfg.Index.IncludeVendor)
	assert.Equal(t, 500*time.Millisecond, cfg.Index.Debounce)

	assert.Equal(t, searcher.DefaultLimit, cfg.Search.Limit)
	assert.Equal(t, searcher.DefaultCacheTTL, cfg.Search.CacheTTL)
	assert.Nil(t, cfg.StrategyWeights())

	assert.Equal(t, RerankLexical, cfg.Rerank.Mode)
	assert.InDelta(t, rerank.DefaultLexicalBoost, cfg.Rerank.LexicalBoost, 1e-9)
	assert.Equal(t, rerank.DefaultMaxCandidates, cfg.Rerank.LLM.MaxCandidates)
	assert.Equal(t, rerank.DefaultBreakerConfig().Timeout, cfg.Rerank.Breaker.Timeout)

	assert.Equal(t, assembler.DefaultMaxTokens, cfg.Context.MaxTokens)
	assert.Equal(t, string(assembler.FormatStructured), cfg.Context.Format)
	assert.True(t, cfg.Context.IncludeSources)

	assert.Equal(t, "ctxgraph", cfg.Telemetry.ServiceName)
	assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
root: `+root+`
log:
  level: debug
  format: json
index:
  workers: 8
  include_tests: false
  debounce: 2s
embedding:
  provider: local
search:
  limit: 25
  strategies: [keyword, graph]
  weights:
    keyword: 2.0
    graph: 0.5
  cache_ttl: 10m
rerank:
  mode: llm
  llm:
    model: gpt-4o
  breaker:
    failure_ratio: 0.9
context:
  max_tokens: 1200
  format: xml
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, filepath.Join(root, DataDir, "index.db"), cfg.DBPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Index.Workers)
	assert.False(t, cfg.Index.IncludeTests)
	assert.Equal(t, 2*time.Second, cfg.Index.Debounce)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 25, cfg.Search.Limit)
	assert.Equal(t, 10*time.Minute, cfg.Search.CacheTTL)
	assert.Equal(t, []types.Strategy{types.StrategyKeyword, types.StrategyGraph}, cfg.SearchStrategies())
	assert.Equal(t, map[types.Strategy]float64{
		types.StrategyKeyword: 2.0,
		types.StrategyGraph:   0.5,
	}, cfg.StrategyWeights())
	assert.Equal(t, RerankLLM, cfg.Rerank.Mode)
	assert.Equal(t, "gpt-4o", cfg.Rerank.LLM.Model)
	assert.InDelta(t, 0.9, cfg.Rerank.Breaker.FailureRatio, 1e-9)
	assert.Equal(t, 1200, cfg.Context.MaxTokens)
	assert.Equal(t, "xml", cfg.Context.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("CTXGRAPH_LOG_LEVEL", "warn")
	t.Setenv("CTXGRAPH_SEARCH_LIMIT", "42")
	t.Setenv("CTXGRAPH_DB_PATH", "/tmp/custom.db")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 42, cfg.Search.Limit)
	assert.Equal(t, "/tmp/custom.db", cfg.DBPath)
	assert.Equal(t, "sk-test", cfg.Rerank.LLM.APIKey)
}

func TestLoadFlagPrecedence(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("CTXGRAPH_LOG_LEVEL", "warn")

	v := New()
	v.Set("log.level", "error")

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad rerank mode", "rerank:\n  mode: magic\n", "rerank.mode"},
		{"bad format", "context:\n  format: html\n", "context.format"},
		{"bad strategy", "search:\n  strategies: [fuzzy]\n", "strategy"},
		{"bad weight key", "search:\n  weights:\n    fuzzy: 1\n", "weight"},
		{"malformed yaml", "log: [\n", "failed to read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
