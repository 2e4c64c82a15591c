package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const backendChromem = "chromem"

// chromemDimensionsFile records collection dimensions next to the persisted
// collections, which chromem loads as subdirectories only.
const chromemDimensionsFile = "dimensions.json"

// ChromemConfig configures a ChromemStore.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps the database in memory.
	// A leading ~ is expanded to the home directory.
	Path string

	// Compress enables gzip compression of persisted collections.
	Compress bool

	// BatchSize overrides DefaultBatchSize.
	BatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// ChromemStore implements VectorDatabase on an embedded chromem-go database.
//
// chromem has no payload indexes or sparse vectors, so filters are evaluated
// in process and hybrid collections are plain dense collections. Document IDs
// are stored unchanged.
type ChromemStore struct {
	config ChromemConfig
	logger *zap.Logger
	gate   *readyGate
	db     *chromem.DB

	// dimsPath is empty for in-memory databases.
	dimsPath string

	mu   sync.RWMutex
	dims map[string]int
}

// NewChromemStore returns a store whose database is already being opened.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) *ChromemStore {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ChromemStore{config: config, logger: logger, dims: make(map[string]int)}
	s.gate = startGate(s.initialize)
	return s
}

func (s *ChromemStore) initialize() error {
	if s.config.Path == "" {
		s.db = chromem.NewDB()
		s.logger.Info("chromem store initialized in memory")
		return nil
	}
	path, err := expandPath(s.config.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("creating chromem directory: %w", err)
	}
	if _, err := quarantineChromemDir(path, s.logger); err != nil {
		return err
	}
	db, err := chromem.NewPersistentDB(path, s.config.Compress)
	if err != nil {
		return fmt.Errorf("opening chromem database: %w", err)
	}
	s.db = db
	s.dimsPath = filepath.Join(path, chromemDimensionsFile)
	if err := s.loadDimensions(); err != nil {
		s.logger.Warn("ignoring unreadable collection dimensions", zap.Error(err))
	}
	s.logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", s.config.Compress),
	)
	return nil
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

// precomputedOnly rejects embedding requests; every document and query
// carries its own vector.
func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store requires precomputed embeddings")
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, precomputedOnly)
	if c == nil {
		return nil, fmt.Errorf("collection %s: %w", name, ErrNotFound)
	}
	return c, nil
}

func (s *ChromemStore) rememberDimension(name string, dimension int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dims[name]; ok {
		return
	}
	s.dims[name] = dimension
	s.saveDimensionsLocked()
}

func (s *ChromemStore) forgetDimension(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dims, name)
	s.saveDimensionsLocked()
}

func (s *ChromemStore) loadDimensions() error {
	raw, err := os.ReadFile(s.dimsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var dims map[string]int
	if err := json.Unmarshal(raw, &dims); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, d := range dims {
		s.dims[name] = d
	}
	return nil
}

// saveDimensionsLocked persists dims; write failures are logged.
func (s *ChromemStore) saveDimensionsLocked() {
	if s.dimsPath == "" {
		return
	}
	raw, err := json.Marshal(s.dims)
	if err == nil {
		err = os.WriteFile(s.dimsPath, raw, 0o600)
	}
	if err != nil {
		s.logger.Warn("failed to persist collection dimensions", zap.Error(err))
	}
}

func (s *ChromemStore) dimension(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dims[name]
	return d, ok
}

// CreateCollection implements VectorDatabase.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimension int) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendChromem, "create_collection", name)
	defer func() { done(err) }()

	err = ensureCollection(ctx, s, s.logger, name, dimension, func() error {
		_, err := s.db.CreateCollection(name, map[string]string{
			"dimension": strconv.Itoa(dimension),
		}, precomputedOnly)
		return err
	})
	if err == nil {
		s.rememberDimension(name, dimension)
	}
	return err
}

// CreateHybridCollection implements VectorDatabase. Lexical matching is done
// by reranking, so the collection is a plain dense one.
func (s *ChromemStore) CreateHybridCollection(ctx context.Context, name string, dimension int) error {
	return s.CreateCollection(ctx, name, dimension)
}

// DropCollection implements VectorDatabase.
func (s *ChromemStore) DropCollection(ctx context.Context, name string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	_, done := startOperation(ctx, backendChromem, "drop_collection", name)
	defer func() { done(err) }()

	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	s.forgetDimension(name)
	s.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

// HasCollection implements VectorDatabase.
func (s *ChromemStore) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := s.gate.wait(ctx); err != nil {
		return false, err
	}
	return s.db.GetCollection(name, precomputedOnly) != nil, nil
}

// ListCollections implements VectorDatabase. Names are sorted.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Insert implements VectorDatabase.
func (s *ChromemStore) Insert(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert", collection, docs)
}

// InsertHybrid implements VectorDatabase. Sparse vectors are not stored.
func (s *ChromemStore) InsertHybrid(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert_hybrid", collection, docs)
}

func (s *ChromemStore) upsert(ctx context.Context, op, name string, docs []VectorDocument) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendChromem, op, name)
	defer func() { done(err) }()

	c, err := s.collection(name)
	if err != nil {
		return err
	}

	err = writeBatches(docs, s.config.BatchSize, func(batch []VectorDocument) error {
		out := make([]chromem.Document, len(batch))
		for i, doc := range batch {
			if err := s.checkDimension(name, len(doc.Vector)); err != nil {
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
			metadata, err := chromemMetadata(doc)
			if err != nil {
				return err
			}
			out[i] = chromem.Document{
				ID:        doc.ID,
				Metadata:  metadata,
				Embedding: doc.Vector,
				Content:   doc.Content,
			}
		}
		if err := c.AddDocuments(ctx, out, 1); err != nil {
			return err
		}
		recordBatch(backendChromem, len(batch))
		return nil
	})
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", name, err)
	}
	return nil
}

func (s *ChromemStore) checkDimension(name string, n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidDimension)
	}
	s.rememberDimension(name, n)
	if d, _ := s.dimension(name); d != n {
		return fmt.Errorf("%w: got %d, collection has %d", ErrInvalidDimension, n, d)
	}
	return nil
}

// chromemMetadata stores the payload as chromem's string metadata.
func chromemMetadata(doc VectorDocument) (map[string]string, error) {
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return map[string]string{
		fieldRelativePath:  doc.RelativePath,
		fieldStartLine:     strconv.Itoa(doc.StartLine),
		fieldEndLine:       strconv.Itoa(doc.EndLine),
		fieldFileExtension: doc.FileExtension,
		fieldMetadata:      metadata,
		fieldOriginalID:    doc.ID,
	}, nil
}

// chromemPayload is the filterable view of a stored chromem document.
func chromemPayload(content string, metadata map[string]string) map[string]any {
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[fieldContent] = content
	payload[fieldStartLine] = payloadInt(payload, fieldStartLine)
	payload[fieldEndLine] = payloadInt(payload, fieldEndLine)
	return payload
}

// scan returns up to limit documents matching p, ordered by similarity to vector.
func (s *ChromemStore) scan(ctx context.Context, c *chromem.Collection, vector []float32, p *Predicate, limit int) ([]chromem.Result, error) {
	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	n := count
	if p == nil && limit < count {
		n = limit
	}
	hits, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, err
	}
	out := hits[:0]
	for _, h := range hits {
		if p.Matches(chromemPayload(h.Content, h.Metadata)) {
			out = append(out, h)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *ChromemStore) search(ctx context.Context, name string, vector []float32, limit int, filterExpr string) ([]VectorSearchResult, error) {
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	hits, err := s.scan(ctx, c, vector, TranslateFilter(filterExpr, s.logger), limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", name, err)
	}
	results := make([]VectorSearchResult, len(hits))
	for i, h := range hits {
		doc := documentFromPayload(h.ID, chromemPayload(h.Content, h.Metadata), s.logger)
		doc.Vector = vector
		results[i] = VectorSearchResult{Document: doc, Score: h.Similarity}
	}
	return results, nil
}

// Search implements VectorDatabase.
func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) (results []VectorSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendChromem, "search", collection)
	defer func() { done(err) }()

	return s.search(ctx, collection, vector, opts.topK(), opts.FilterExpr)
}

// HybridSearch implements VectorDatabase.
func (s *ChromemStore) HybridSearch(ctx context.Context, collection string, requests []HybridSearchRequest, opts HybridSearchOptions) (results []HybridSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendChromem, "hybrid_search", collection)
	defer func() { done(err) }()

	dense, lexical, err := splitHybridRequests(requests)
	if err != nil {
		return nil, err
	}
	hits, err := s.search(ctx, collection, dense.Vector, hybridLimit(opts, dense), opts.FilterExpr)
	if err != nil {
		return nil, err
	}
	return rerank(opts.Rerank, lexical, toHybridResults(hits)), nil
}

// Query implements VectorDatabase. chromem cannot iterate a collection, so
// the scan ranks every document against a unit vector.
func (s *ChromemStore) Query(ctx context.Context, collection, filter string, outputFields []string, limit int) (rows []map[string]any, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendChromem, "query", collection)
	defer func() { done(err) }()

	if limit < 1 {
		limit = DefaultQueryLimit
	}
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if c.Count() == 0 {
		return []map[string]any{}, nil
	}
	dim, ok := s.dimension(collection)
	if !ok {
		return nil, fmt.Errorf("querying %s: %w: dimension unknown until a document is inserted", collection, ErrInvalidDimension)
	}
	unit := make([]float32, dim)
	unit[0] = 1

	hits, err := s.scan(ctx, c, unit, TranslateFilter(filter, s.logger), limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	rows = make([]map[string]any, len(hits))
	for i, h := range hits {
		rows[i] = projectPayload(h.ID, chromemPayload(h.Content, h.Metadata), outputFields)
	}
	return rows, nil
}

// Delete implements VectorDatabase.
func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendChromem, "delete", collection)
	defer func() { done(err) }()

	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Close implements VectorDatabase. Persistent databases write on every
// change, so there is nothing to flush.
func (s *ChromemStore) Close() error {
	<-s.gate.done
	return nil
}

var _ VectorDatabase = (*ChromemStore)(nil)
