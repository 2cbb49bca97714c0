package assembler

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
	tracer = otel.Tracer("ctxgraph.assembler")
	meter  = otel.Meter("ctxgraph.assembler")
)

var (
	assembleLatency   metric.Float64Histogram
	assembleTokens    metric.Int64Histogram
	assembleTruncated metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		assembleLatency, err = meter.Float64Histogram(
			"context_assemble_duration_seconds",
			metric.WithDescription("Duration of context assembly"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assembleTokens, err = meter.Int64Histogram(
			"context_assemble_tokens",
			metric.WithDescription("Estimated tokens per assembled context"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		assembleTruncated, err = meter.Int64Counter(
			"context_assemble_truncated_total",
			metric.WithDescription("Assemblies that left results out"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordAssembleMetrics(ctx context.Context, duration time.Duration, c *types.AssembledContext) {
	if err := initMetrics(); err != nil {
		return
	}
	assembleLatency.Record(ctx, duration.Seconds())
	assembleTokens.Record(ctx, int64(c.TokenCount))
	if c.Truncated {
		assembleTruncated.Add(ctx, 1)
	}
}

func startAssembleSpan(ctx context.Context, candidates int, opts Options) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Assembler.Assemble",
		trace.WithAttributes(
			attribute.Int("assemble.candidates", candidates),
			attribute.Int("assemble.max_tokens", opts.MaxTokens),
			attribute.String("assemble.format", string(opts.Format)),
		),
	)
}

func setAssembleSpanResult(span trace.Span, c *types.AssembledContext) {
	span.SetAttributes(
		attribute.Int("assemble.sources", len(c.Sources)),
		attribute.Int("assemble.tokens", c.TokenCount),
		attribute.Bool("assemble.truncated", c.Truncated),
	)
}
