package vectorstore

// DefaultBatchSize bounds the number of documents sent per upsert request.
const DefaultBatchSize = 100

// writeBatches calls write for consecutive slices of at most size documents,
// one at a time. The first failure stops the loop and is returned as a
// *BatchError.
func writeBatches(docs []VectorDocument, size int, write func(batch []VectorDocument) error) error {
	if size < 1 {
		size = DefaultBatchSize
	}
	for n, offset := 0, 0; offset < len(docs); n, offset = n+1, offset+size {
		end := min(offset+size, len(docs))
		if err := write(docs[offset:end]); err != nil {
			return &BatchError{Batch: n, Offset: offset, Size: end - offset, Err: err}
		}
	}
	return nil
}
