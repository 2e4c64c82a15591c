package http

import "github.com/fyrsmithlabs/codeindex/internal/vectorstore"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Collections int    `json:"collections"`
	Embeddings  bool   `json:"embeddings"`
	Dimension   int    `json:"dimension,omitempty"`
}

// CreateCollectionRequest is the request body for POST /api/v1/collections.
// A zero dimension uses the embedding provider's.
type CreateCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Hybrid    bool   `json:"hybrid"`
}

// CollectionResponse describes a single collection.
type CollectionResponse struct {
	Name      string `json:"name"`
	Exists    bool   `json:"exists"`
	Dimension int    `json:"dimension,omitempty"`
	Hybrid    bool   `json:"hybrid,omitempty"`
}

// ListCollectionsResponse is the response body for GET /api/v1/collections.
type ListCollectionsResponse struct {
	Collections []string `json:"collections"`
}

// InsertRequest is the request body for POST .../documents. Documents
// without a vector are embedded from their content.
type InsertRequest struct {
	Documents []vectorstore.VectorDocument `json:"documents"`
	Hybrid    bool                         `json:"hybrid"`
}

// InsertResponse reports how many documents were written.
type InsertResponse struct {
	Inserted int `json:"inserted"`
}

// SearchRequest is the request body for POST .../search. Text is embedded
// when Vector is empty.
type SearchRequest struct {
	Vector []float32 `json:"vector,omitempty"`
	Text   string    `json:"text,omitempty"`
	TopK   int       `json:"top_k"`
	Filter string    `json:"filter,omitempty"`
}

// SearchResponse is the response body for POST .../search.
type SearchResponse struct {
	Results []vectorstore.VectorSearchResult `json:"results"`
}

// HybridSearchRequest is the request body for POST .../hybrid. Text drives
// both the dense and the lexical channel.
type HybridSearchRequest struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector,omitempty"`
	Limit  int       `json:"limit"`
	Filter string    `json:"filter,omitempty"`
	Rerank string    `json:"rerank,omitempty"`
}

// HybridSearchResponse is the response body for POST .../hybrid.
type HybridSearchResponse struct {
	Results []vectorstore.HybridSearchResult `json:"results"`
}

// QueryRequest is the request body for POST .../query.
type QueryRequest struct {
	Filter       string   `json:"filter"`
	OutputFields []string `json:"output_fields"`
	Limit        int      `json:"limit"`
}

// QueryResponse is the response body for POST .../query.
type QueryResponse struct {
	Rows []map[string]any `json:"rows"`
}

// DeleteRequest is the request body for POST .../delete.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many IDs were submitted for deletion.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}
