package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("ctxgraph.graph")
	meter  = otel.Meter("ctxgraph.graph")
)

// Metrics for graph queries.
var (
	queryLatency         metric.Float64Histogram
	queryResults         metric.Int64Histogram
	queryTruncated       metric.Int64Counter
	relationshipsCreated metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"graph_query_duration_seconds",
			metric.WithDescription("Duration of graph traversal queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryResults, err = meter.Int64Histogram(
			"graph_query_results",
			metric.WithDescription("Number of entities or paths returned per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTruncated, err = meter.Int64Counter(
			"graph_query_truncated_total",
			metric.WithDescription("Queries stopped by the expansion bound or cancellation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		relationshipsCreated, err = meter.Int64Counter(
			"graph_relationships_created_total",
			metric.WithDescription("Relationships created through the graph store"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryMetrics records metrics for a traversal query.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, resultCount int, truncated bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("query_type", queryType))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryResults.Record(ctx, int64(resultCount), attrs)
	if truncated {
		queryTruncated.Add(ctx, 1, attrs)
	}
}

// recordRelationshipCreated counts a new edge by type.
func recordRelationshipCreated(ctx context.Context, relType string) {
	if err := initMetrics(); err != nil {
		return
	}
	relationshipsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("relationship_type", relType)))
}

// startQuerySpan creates a span for a traversal query.
func startQuerySpan(ctx context.Context, queryType, entityID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph."+queryType,
		trace.WithAttributes(
			attribute.String("graph.query_type", queryType),
			attribute.String("graph.entity_id", entityID),
		),
	)
}

// setQuerySpanResult sets the result attributes on a query span.
func setQuerySpanResult(span trace.Span, resultCount int, truncated bool) {
	span.SetAttributes(
		attribute.Int("graph.result_count", resultCount),
		attribute.Bool("graph.truncated", truncated),
	)
}
