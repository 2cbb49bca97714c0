package indexer

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("ctxgraph.indexer")
	meter  = otel.Meter("ctxgraph.indexer")
)

var (
	indexLatency  metric.Float64Histogram
	indexFiles    metric.Int64Counter
	indexEntities metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		indexLatency, err = meter.Float64Histogram(
			"index_project_duration_seconds",
			metric.WithDescription("Duration of a project indexing run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexFiles, err = meter.Int64Counter(
			"index_files_total",
			metric.WithDescription("Files processed, by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexEntities, err = meter.Int64Counter(
			"index_entities_total",
			metric.WithDescription("Entities written to the store"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordIndexMetrics(ctx context.Context, stats *Statistics) {
	if err := initMetrics(); err != nil {
		return
	}
	indexLatency.Record(ctx, stats.Duration.Seconds())
	indexFiles.Add(ctx, int64(stats.FilesIndexed), metric.WithAttributes(attribute.String("outcome", "indexed")))
	indexFiles.Add(ctx, int64(stats.FilesSkipped), metric.WithAttributes(attribute.String("outcome", "skipped")))
	indexFiles.Add(ctx, int64(stats.FilesFailed), metric.WithAttributes(attribute.String("outcome", "failed")))
	indexFiles.Add(ctx, int64(stats.FilesRemoved), metric.WithAttributes(attribute.String("outcome", "removed")))
	indexEntities.Add(ctx, int64(stats.EntitiesStored))
}

func startIndexSpan(ctx context.Context, root string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Indexer.IndexProject",
		trace.WithAttributes(attribute.String("index.root", root)),
	)
}

func setIndexSpanResult(span trace.Span, stats *Statistics) {
	span.SetAttributes(
		attribute.Int("index.files_indexed", stats.FilesIndexed),
		attribute.Int("index.files_skipped", stats.FilesSkipped),
		attribute.Int("index.files_failed", stats.FilesFailed),
		attribute.Int("index.entities", stats.EntitiesStored),
		attribute.Int("index.references_resolved", stats.ReferencesResolved),
	)
}
