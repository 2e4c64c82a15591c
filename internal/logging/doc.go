// Package logging wraps zap with the conventions codeindex components share.
//
// A Logger adds correlation fields taken from the context to every entry:
// the OpenTelemetry trace and span ids, the request id assigned by the HTTP
// layer, and the collection and operation a vector store call is working on.
//
//	ctx = logging.WithRequestID(ctx, id)
//	ctx = logging.WithCollection(ctx, "code_chunks_3f2a")
//	logger.Info(ctx, "search finished", zap.Int("results", n))
//
// Entries are written to stderr as JSON or console text, and optionally
// bridged to an OpenTelemetry LoggerProvider. Field names listed in
// RedactionConfig and values matching its patterns are replaced before
// encoding. Levels below error may be sampled; errors never are.
//
// Components that only need a *zap.Logger (the vector stores, the embedding
// clients) receive Logger.Underlying().
package logging
