package vectorstore

import (
	"context"
	"fmt"
	"regexp"
)

// Named vector fields used by hybrid collections and hybrid requests.
const (
	AnnsFieldVector = "vector"
	AnnsFieldDense  = "dense_vector"
	AnnsFieldSparse = "sparse_vector"
)

const (
	// DefaultTopK is used when SearchOptions.TopK is not set.
	DefaultTopK = 10

	// DefaultQueryLimit is used when Query is called without a limit.
	DefaultQueryLimit = 100
)

// VectorDocument is a chunk of source code with its dense embedding.
type VectorDocument struct {
	ID            string         `json:"id"`
	Vector        []float32      `json:"vector"`
	SparseVector  *SparseVector  `json:"sparse_vector,omitempty"`
	Content       string         `json:"content"`
	RelativePath  string         `json:"relative_path"`
	StartLine     int            `json:"start_line"`
	EndLine       int            `json:"end_line"`
	FileExtension string         `json:"file_extension"`
	Metadata      map[string]any `json:"metadata"`
}

// SearchOptions configures a dense search.
type SearchOptions struct {
	// TopK is the number of results to return. Defaults to DefaultTopK.
	TopK int

	// FilterExpr is an optional filter expression, see TranslateFilter.
	FilterExpr string
}

func (o SearchOptions) topK() int {
	if o.TopK < 1 {
		return DefaultTopK
	}
	return o.TopK
}

// VectorSearchResult is a document with its similarity score (higher is closer).
type VectorSearchResult struct {
	Document VectorDocument `json:"document"`
	Score    float32        `json:"score"`
}

// HybridSearchRequest is one channel of a hybrid query. Dense requests carry
// Vector and use AnnsFieldVector or AnnsFieldDense; lexical requests carry Text
// and use AnnsFieldSparse.
type HybridSearchRequest struct {
	AnnsField string         `json:"anns_field"`
	Vector    []float32      `json:"vector,omitempty"`
	Text      string         `json:"text,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// DenseRequest builds a dense channel request against the named dense vector.
func DenseRequest(vector []float32, limit int) HybridSearchRequest {
	return HybridSearchRequest{AnnsField: AnnsFieldDense, Vector: vector, Limit: limit}
}

// LexicalRequest builds a lexical channel request.
func LexicalRequest(text string, limit int) HybridSearchRequest {
	return HybridSearchRequest{AnnsField: AnnsFieldSparse, Text: text, Limit: limit}
}

// HybridSearchOptions configures HybridSearch.
type HybridSearchOptions struct {
	Limit      int
	FilterExpr string
	Rerank     RerankStrategy
}

// HybridSearchResult is a document with its post-fusion score.
type HybridSearchResult struct {
	Document VectorDocument `json:"document"`
	Score    float32        `json:"score"`
}

// VectorDatabase is the capability set shared by all backends.
//
// Implementations are safe for concurrent use. None of them retries failed
// backend calls; cancellation and deadlines come from ctx.
type VectorDatabase interface {
	// CreateCollection creates a dense collection with cosine distance.
	// Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// CreateHybridCollection creates a collection with a named dense vector,
	// a sparse vector channel and a text index over content where supported.
	CreateHybridCollection(ctx context.Context, name string, dimension int) error

	// DropCollection deletes a collection and all its documents.
	DropCollection(ctx context.Context, name string) error

	// HasCollection reports whether the collection exists. Only "not found"
	// yields false; every other failure is returned.
	HasCollection(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Insert upserts documents in sequential batches of DefaultBatchSize.
	// A failure returns a *BatchError; earlier batches stay written.
	Insert(ctx context.Context, collection string, docs []VectorDocument) error

	// InsertHybrid is Insert for hybrid collections; each document also gets
	// a sparse vector synthesized from its content.
	InsertHybrid(ctx context.Context, collection string, docs []VectorDocument) error

	// Search returns the nearest documents to vector.
	Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) ([]VectorSearchResult, error)

	// HybridSearch combines a dense request with an optional lexical request.
	HybridSearch(ctx context.Context, collection string, requests []HybridSearchRequest, opts HybridSearchOptions) ([]HybridSearchResult, error)

	// Query scans documents matching filter and returns the requested fields.
	// The "id" field is the caller's original document ID.
	Query(ctx context.Context, collection, filter string, outputFields []string, limit int) ([]map[string]any, error)

	// Delete removes documents by their caller IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases backend resources.
	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// ValidateCollectionName rejects names that are unsafe in URL paths or on disk.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func validateDimension(dimension int) error {
	if dimension < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	return nil
}
