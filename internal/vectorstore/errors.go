package vectorstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for vector database operations.
var (
	// ErrNotInitialized is returned when the backend connection could not be set up.
	ErrNotInitialized = errors.New("vector database not initialized")

	// ErrCollectionLimitExceeded is returned when the backend refuses to create
	// another collection because the account quota is exhausted.
	ErrCollectionLimitExceeded = errors.New("collection limit exceeded")

	// ErrNotFound indicates the backend reported a missing resource.
	ErrNotFound = errors.New("not found")

	// ErrDenseRequestRequired is returned by HybridSearch when no dense request is supplied.
	ErrDenseRequestRequired = errors.New("dense vector search request is required for hybrid search")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidDimension indicates a vector whose length does not match the collection.
	ErrInvalidDimension = errors.New("invalid vector dimension")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionLimitMessage is the user-facing hint attached to ErrCollectionLimitExceeded.
const collectionLimitMessage = "Your Qdrant account has hit its collection limit. " +
	"To continue creating collections, please upgrade your plan or delete existing collections."

// BatchError reports the batch that failed during Insert or InsertHybrid.
// Batches before Batch were written successfully.
type BatchError struct {
	Batch  int
	Offset int
	Size   int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (documents %d-%d): %v", e.Batch, e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the Qdrant REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is reports 404 responses as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
