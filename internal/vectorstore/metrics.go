package vectorstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/codeindex/internal/vectorstore")

var (
	// operationDuration tracks backend operation latency.
	// Labels: backend (rest, grpc, chromem), operation
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector database operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// operationErrorsTotal counts failed operations.
	operationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "operation_errors_total",
			Help:      "Total number of failed vector database operations",
		},
		[]string{"backend", "operation"},
	)

	// documentsWrittenTotal counts documents acknowledged by the backend.
	documentsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "documents_written_total",
			Help:      "Total number of documents upserted",
		},
		[]string{"backend"},
	)

	// batchesWrittenTotal counts upsert requests.
	batchesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "batches_written_total",
			Help:      "Total number of upsert batches sent",
		},
		[]string{"backend"},
	)

	filterFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "filter_fallbacks_total",
			Help:      "Filter expressions that could not be parsed and were ignored",
		},
	)

	payloadDecodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codeindex",
			Subsystem: "vectorstore",
			Name:      "payload_decode_failures_total",
			Help:      "Metadata blobs that failed to decode and were replaced by an empty map",
		},
	)
)

// startOperation opens a span for a backend operation. The returned func
// records duration, error count and span status; call it with the
// operation's final error.
func startOperation(ctx context.Context, backend, operation, collection string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, backend+"."+operation, trace.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("collection", collection),
	))
	start := time.Now()
	return ctx, func(err error) {
		operationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
		if err != nil {
			operationErrorsTotal.WithLabelValues(backend, operation).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}
}

func recordBatch(backend string, size int) {
	batchesWrittenTotal.WithLabelValues(backend).Inc()
	documentsWrittenTotal.WithLabelValues(backend).Add(float64(size))
}
