package searcher

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/ctxgraph/pkg/types"
)

var (
	tracer = otel.Tracer("ctxgraph.searcher")
	meter  = otel.Meter("ctxgraph.searcher")
)

var (
	searchLatency   metric.Float64Histogram
	searchResults   metric.Int64Histogram
	cacheHits       metric.Int64Counter
	strategyLatency metric.Float64Histogram
	strategyErrors  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		searchLatency, err = meter.Float64Histogram(
			"search_duration_seconds",
			metric.WithDescription("End-to-end search duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchResults, err = meter.Int64Histogram(
			"search_results",
			metric.WithDescription("Results returned per search"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"search_cache_hits_total",
			metric.WithDescription("Searches answered from the response cache"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		strategyLatency, err = meter.Float64Histogram(
			"search_strategy_duration_seconds",
			metric.WithDescription("Duration of one strategy execution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		strategyErrors, err = meter.Int64Counter(
			"search_strategy_errors_total",
			metric.WithDescription("Strategy executions that failed"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSearchMetrics(ctx context.Context, duration time.Duration, resultCount int, cacheHit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("cache_hit", cacheHit))
	searchLatency.Record(ctx, duration.Seconds(), attrs)
	searchResults.Record(ctx, int64(resultCount), attrs)
	if cacheHit {
		cacheHits.Add(ctx, 1)
	}
}

func recordStrategyMetrics(ctx context.Context, st types.Strategy, duration time.Duration, resultCount int, err error) {
	if initErr := initMetrics(); initErr != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("strategy", string(st)))
	strategyLatency.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		strategyErrors.Add(ctx, 1, attrs)
	}
}

func startSearchSpan(ctx context.Context, req SearchRequest) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Searcher.Search",
		trace.WithAttributes(
			attribute.Int("search.limit", req.Limit),
			attribute.Int("search.query_length", len(req.Query)),
			attribute.Bool("search.use_cache", req.UseCache),
		),
	)
}

func setSearchSpanResult(span trace.Span, resultCount int, cacheHit bool) {
	span.SetAttributes(
		attribute.Int("search.result_count", resultCount),
		attribute.Bool("search.cache_hit", cacheHit),
	)
}
