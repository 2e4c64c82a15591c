// Package vectorstore provides the vector database abstraction used by codeindex.
//
// A single VectorDatabase interface is implemented by three backends that are
// selected at construction time by NewStore:
//   - RESTStore talks to Qdrant over its HTTP/JSON API
//   - GRPCStore talks to Qdrant through the official gRPC client
//   - ChromemStore is an embedded, dependency-free store backed by chromem-go
//
// All backends share the same behavior for the operations that callers rely on:
// idempotent collection creation, sequential batched upserts of 100 documents,
// filter-expression translation and hybrid (dense + lexical) reranking.
//
// # Connection
//
// Each store starts connecting as soon as it is constructed. Every operation
// waits for that single initialization to settle and fails with
// ErrNotInitialized when the backend endpoint could not be resolved.
//
// # Identifiers
//
// Qdrant only accepts UUIDs or unsigned integers as point IDs. Qdrant-backed
// stores derive a deterministic UUID from each document ID with PointID and
// keep the caller's ID in the "originalId" payload field so it is returned on
// read. ChromemStore keeps IDs unchanged.
//
// # Filter expressions
//
// Search, HybridSearch and Query accept a small filter language:
//
//	fileExtension in [".go", ".py"]   // any of the listed values
//	language == "go"                  // single equality
//	startLine > 10                    // >, >=, <, <= against an integer
//
// Expressions outside this subset are ignored with a warning and the
// operation runs unfiltered.
//
// # Hybrid search
//
// HybridSearch runs the dense query and then applies the caller-selected
// RerankStrategy using the text of the lexical request:
//
//	results, err := store.HybridSearch(ctx, "repo_ab12", []vectorstore.HybridSearchRequest{
//	    vectorstore.DenseRequest(vec, 20),
//	    vectorstore.LexicalRequest("parse config file", 20),
//	}, vectorstore.HybridSearchOptions{Rerank: vectorstore.RerankLexicalBoost})
package vectorstore
