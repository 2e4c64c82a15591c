package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/codeindex/internal/embeddings"

// metrics records request latency, batch size and failures per provider.
type metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

func newMetrics(logger *zap.Logger) *metrics {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"codeindex.embedding.duration_seconds",
		metric.WithDescription("Duration of embedding requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create embedding duration histogram", zap.Error(err))
	}

	m.batchSize, err = meter.Int64Histogram(
		"codeindex.embedding.batch_size",
		metric.WithDescription("Texts per embedding request"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		logger.Warn("failed to create embedding batch size histogram", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"codeindex.embedding.errors_total",
		metric.WithDescription("Failed embedding requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create embedding error counter", zap.Error(err))
	}
	return m
}

// record is deferred by each request with the request's final error.
func (m *metrics) record(ctx context.Context, provider, model string, start time.Time, texts int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	if m.duration != nil {
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if m.batchSize != nil && texts > 0 {
		m.batchSize.Record(ctx, int64(texts), attrs)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
