package rerank

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dshills/ctxgraph/pkg/types"
)

// BreakerConfig tunes the circuit breaker around a reranker
type BreakerConfig struct {
	Name         string        `mapstructure:"name"`
	MaxRequests  uint32        `mapstructure:"max_requests"` // Probes allowed while half-open
	Interval     time.Duration `mapstructure:"interval"`     // Closed-state counter reset period
	Timeout      time.Duration `mapstructure:"timeout"`      // Open duration before probing
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// DefaultBreakerConfig trips after 3 requests with at least 60% failures
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "reranker",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// BreakerReranker fails fast with gobreaker.ErrOpenState while the wrapped
// reranker keeps failing
type BreakerReranker struct {
	next Reranker
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerReranker wraps next with a circuit breaker
func NewBreakerReranker(next Reranker, cfg BreakerConfig, logger *slog.Logger) *BreakerReranker {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("reranker circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerReranker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerReranker) Rerank(ctx context.Context, q string, results []types.SearchResult) ([]types.SearchResult, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Rerank(ctx, q, results)
	})
	if err != nil {
		return nil, err
	}
	return out.([]types.SearchResult), nil
}

// State reports the breaker state
func (b *BreakerReranker) State() gobreaker.State {
	return b.cb.State()
}
