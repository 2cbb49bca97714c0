// Package config loads ctxgraph settings from a YAML file, CTXGRAPH_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/embedder"
	"github.com/dshills/ctxgraph/internal/rerank"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/internal/telemetry"
	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CTXGRAPH_LOG_LEVEL
	EnvPrefix = "CTXGRAPH"

	// ConfigName is the base name searched for in the working and home directories
	ConfigName = ".ctxgraph"

	// DataDir holds the default database below the project root
	DataDir = ".ctxgraph"
)

// Reranker modes
const (
	RerankNone    = "none"
	RerankLexical = "lexical"
	RerankLLM     = "llm"
)

// Config holds all configuration for the application
type Config struct {
	Root      string           `mapstructure:"root"`    // Project root; default the working directory
	DBPath    string           `mapstructure:"db_path"` // Default <root>/.ctxgraph/index.db
	Log       LogConfig        `mapstructure:"log"`
	Index     IndexConfig      `mapstructure:"index"`
	Embedding embedder.Config  `mapstructure:"embedding"`
	Search    SearchConfig     `mapstructure:"search"`
	Rerank    RerankConfig     `mapstructure:"rerank"`
	Context   ContextConfig    `mapstructure:"context"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // pretty, text, json
}

// IndexConfig tunes the indexer and the file watcher
type IndexConfig struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	IncludeTests  bool          `mapstructure:"include_tests"`
	IncludeVendor bool          `mapstructure:"include_vendor"`
	IncludeDocs   bool          `mapstructure:"include_docs"`
	SkipEmbedding bool          `mapstructure:"skip_embedding"`
	Watch         bool          `mapstructure:"watch"`
	Debounce      time.Duration `mapstructure:"debounce"`
}

// SearchConfig tunes multi-strategy search
type SearchConfig struct {
	Limit        int                `mapstructure:"limit"`
	Strategies   []string           `mapstructure:"strategies"`
	Weights      map[string]float64 `mapstructure:"weights"` // Fixed per-strategy weights
	CacheSize    int                `mapstructure:"cache_size"`
	CacheTTL     time.Duration      `mapstructure:"cache_ttl"`
	SynonymsFile string             `mapstructure:"synonyms_file"`
	GraphDepth   int                `mapstructure:"graph_depth"`
}

// RerankConfig selects the reranker applied after fusion
type RerankConfig struct {
	Mode         string               `mapstructure:"mode"` // none, lexical, llm
	LexicalBoost float64              `mapstructure:"lexical_boost"`
	LLM          rerank.LLMConfig     `mapstructure:"llm"`
	Breaker      rerank.BreakerConfig `mapstructure:"breaker"`
}

// ContextConfig holds context assembly defaults
type ContextConfig struct {
	MaxTokens       int    `mapstructure:"max_tokens"`
	Format          string `mapstructure:"format"`
	GroupByCategory bool   `mapstructure:"group_by_category"`
	IncludeSources  bool   `mapstructure:"include_sources"`
	FileCacheSize   int    `mapstructure:"file_cache_size"`
}

// New returns a viper instance with defaults and environment overrides
// registered. Flags bound to it take precedence over both.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("rerank.llm.api_key", EnvPrefix+"_RERANK_LLM_API_KEY", "OPENAI_API_KEY")
	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("db_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pretty")

	v.SetDefault("index.workers", 0)
	v.SetDefault("index.batch_size", 20)
	v.SetDefault("index.include_tests", true)
	v.SetDefault("index.include_vendor", false)
	v.SetDefault("index.include_docs", true)
	v.SetDefault("index.skip_embedding", false)
	v.SetDefault("index.watch", false)
	v.SetDefault("index.debounce", 500*time.Millisecond)

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.cache_size", embedder.DefaultCacheSize)
	v.SetDefault("embedding.requests_per_second", 0)

	v.SetDefault("search.limit", searcher.DefaultLimit)
	v.SetDefault("search.strategies", []string{})
	v.SetDefault("search.weights", map[string]float64{})
	v.SetDefault("search.cache_size", searcher.DefaultCacheSize)
	v.SetDefault("search.cache_ttl", searcher.DefaultCacheTTL)
	v.SetDefault("search.synonyms_file", "")
	v.SetDefault("search.graph_depth", searcher.DefaultGraphDepth)

	breaker := rerank.DefaultBreakerConfig()
	v.SetDefault("rerank.mode", RerankLexical)
	v.SetDefault("rerank.lexical_boost", rerank.DefaultLexicalBoost)
	v.SetDefault("rerank.llm.api_key", "")
	v.SetDefault("rerank.llm.base_url", "")
	v.SetDefault("rerank.llm.model", rerank.DefaultLLMModel)
	v.SetDefault("rerank.llm.max_candidates", rerank.DefaultMaxCandidates)
	v.SetDefault("rerank.llm.min_score", 0.0)
	v.SetDefault("rerank.breaker.name", breaker.Name)
	v.SetDefault("rerank.breaker.max_requests", breaker.MaxRequests)
	v.SetDefault("rerank.breaker.interval", breaker.Interval)
	v.SetDefault("rerank.breaker.timeout", breaker.Timeout)
	v.SetDefault("rerank.breaker.min_requests", breaker.MinRequests)
	v.SetDefault("rerank.breaker.failure_ratio", breaker.FailureRatio)

	v.SetDefault("context.max_tokens", assembler.DefaultMaxTokens)
	v.SetDefault("context.format", string(assembler.FormatStructured))
	v.SetDefault("context.group_by_category", false)
	v.SetDefault("context.include_sources", true)
	v.SetDefault("context.file_cache_size", assembler.DefaultFileCacheSize)

	tel := telemetry.DefaultConfig()
	v.SetDefault("telemetry.service_name", tel.ServiceName)
	v.SetDefault("telemetry.service_version", tel.ServiceVersion)
	v.SetDefault("telemetry.trace_exporter", tel.TraceExporter)
	v.SetDefault("telemetry.metric_exporter", tel.MetricExporter)
	v.SetDefault("telemetry.otlp_endpoint", tel.OTLPEndpoint)
	v.SetDefault("telemetry.otlp_insecure", tel.OTLPInsecure)
	v.SetDefault("telemetry.metrics_addr", "")
}

// Load reads configFile, or .ctxgraph.yaml from the working or home
// directory when configFile is empty, and decodes the merged settings.
// A missing default config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize resolves the root and database paths and validates enums
func (c *Config) normalize() error {
	if c.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.Root = wd
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	c.Root = root

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.Root, DataDir, "index.db")
	}

	switch c.Rerank.Mode {
	case "", RerankNone, RerankLexical, RerankLLM:
	default:
		return fmt.Errorf("invalid rerank.mode %q: want %s, %s or %s", c.Rerank.Mode, RerankNone, RerankLexical, RerankLLM)
	}
	switch assembler.Format(strings.ToLower(c.Context.Format)) {
	case "", assembler.FormatStructured, assembler.FormatXML, assembler.FormatPlain:
	default:
		return fmt.Errorf("invalid context.format %q", c.Context.Format)
	}
	for _, s := range c.Search.Strategies {
		if !types.Strategy(s).Valid() {
			return fmt.Errorf("invalid search strategy %q", s)
		}
	}
	for s := range c.Search.Weights {
		if !types.Strategy(s).Valid() {
			return fmt.Errorf("invalid search weight key %q", s)
		}
	}
	return nil
}

// StrategyWeights converts the configured weights to searcher overrides
func (c *Config) StrategyWeights() map[types.Strategy]float64 {
	if len(c.Search.Weights) == 0 {
		return nil
	}
	out := make(map[types.Strategy]float64, len(c.Search.Weights))
	for k, w := range c.Search.Weights {
		out[types.Strategy(k)] = w
	}
	return out
}

// SearchStrategies converts the configured strategy names
func (c *Config) SearchStrategies() []types.Strategy {
	out := make([]types.Strategy, 0, len(c.Search.Strategies))
	for _, s := range c.Search.Strategies {
		out = append(out, types.Strategy(s))
	}
	return out
}
