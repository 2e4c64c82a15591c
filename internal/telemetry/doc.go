// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// When enabled, New installs global tracer and meter providers exporting over
// OTLP (grpc or http/protobuf) and the W3C trace-context propagator. The
// vector store backends and the HTTP server create spans through the global
// provider, so nothing else needs to hold a Telemetry value.
//
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures never stop the process; the instance is marked degraded
// and the affected signal falls back to the no-op provider.
package telemetry
