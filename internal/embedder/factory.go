package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Config selects and tunes an embedding provider
type Config struct {
	Provider          string  `mapstructure:"provider"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Endpoint          string  `mapstructure:"endpoint"`
	CacheSize         int     `mapstructure:"cache_size"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// New creates an embedder from explicit configuration. An empty provider is
// detected from the environment.
func New(cfg Config) (Embedder, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	cache := NewCache(cfg.CacheSize)
	var opts []ProviderOption
	if cfg.Endpoint != "" {
		opts = append(opts, WithEndpoint(cfg.Endpoint))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.RequestsPerSecond != 0 {
		opts = append(opts, WithRateLimit(cfg.RequestsPerSecond, int(cfg.RequestsPerSecond)))
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache, opts...)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache, opts...)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder chosen by DetectProvider
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider()})
}

// DetectProvider returns the provider selected by the environment:
// CTXGRAPH_EMBEDDING_PROVIDER if set, else the first provider with an API
// key, else local.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
