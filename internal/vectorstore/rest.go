package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const backendREST = "rest"

// RESTConfig configures a RESTStore.
type RESTConfig struct {
	// URL is the full base URL. When set, Scheme, Host and Port are ignored.
	URL string

	// Scheme is "https" (default) or "http".
	Scheme string

	// Host defaults to localhost.
	Host string

	// Port defaults to 6333.
	Port int

	// APIKey is sent in the api-key header when set.
	APIKey string

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	// BatchSize overrides DefaultBatchSize.
	BatchSize int
}

// ApplyDefaults fills unset connection fields.
func (c *RESTConfig) ApplyDefaults() {
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6333
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// BaseURL resolves the API root without a trailing slash.
func (c RESTConfig) BaseURL() (string, error) {
	raw := strings.TrimSuffix(c.URL, "/")
	if raw == "" {
		raw = fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing qdrant url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported qdrant url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("qdrant url %q has no host", raw)
	}
	return raw, nil
}

// RESTStore implements VectorDatabase over the Qdrant HTTP API.
type RESTStore struct {
	config  RESTConfig
	client  *http.Client
	logger  *zap.Logger
	gate    *readyGate
	baseURL string
	vectors denseNames
}

// NewRESTStore returns a store whose connection setup has already started.
func NewRESTStore(config RESTConfig, logger *zap.Logger) *RESTStore {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	s := &RESTStore{config: config, client: client, logger: logger}
	s.gate = startGate(s.initialize)
	return s
}

func (s *RESTStore) initialize() error {
	base, err := s.config.BaseURL()
	if err != nil {
		return err
	}
	s.baseURL = base
	s.logger.Info("connecting to qdrant rest api", zap.String("url", base))
	return nil
}

// restStatus is the error envelope returned by Qdrant.
type restStatus struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
}

// newAPIError extracts status.error or message from a failed response,
// falling back to the HTTP status text.
func newAPIError(code int, body []byte) *APIError {
	msg := http.StatusText(code)
	var env restStatus
	if json.Unmarshal(body, &env) == nil {
		var st struct {
			Error string `json:"error"`
		}
		switch {
		case len(env.Status) > 0 && json.Unmarshal(env.Status, &st) == nil && st.Error != "":
			msg = st.Error
		case env.Message != "":
			msg = env.Message
		}
	}
	return &APIError{StatusCode: code, Message: msg}
}

// do sends a JSON request and decodes the response into out when non-nil.
func (s *RESTStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func collectionPath(name string, parts ...string) string {
	p := "/collections/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// CreateCollection implements VectorDatabase.
func (s *RESTStore) CreateCollection(ctx context.Context, name string, dimension int) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendREST, "create_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	return ensureCollection(ctx, s, s.logger, name, dimension, func() error {
		return s.do(ctx, http.MethodPut, collectionPath(name), map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
		}, nil)
	})
}

// CreateHybridCollection implements VectorDatabase.
func (s *RESTStore) CreateHybridCollection(ctx context.Context, name string, dimension int) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendREST, "create_hybrid_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	return ensureCollection(ctx, s, s.logger, name, dimension, func() error {
		if err := s.do(ctx, http.MethodPut, collectionPath(name), map[string]any{
			"vectors": map[string]any{
				AnnsFieldDense: map[string]any{"size": dimension, "distance": "Cosine"},
			},
			"sparse_vectors":  map[string]any{AnnsFieldSparse: map[string]any{}},
			"on_disk_payload": true,
		}, nil); err != nil {
			return err
		}
		if err := s.do(ctx, http.MethodPut, collectionPath(name, "index")+"?wait=true", map[string]any{
			"field_name":   fieldContent,
			"field_schema": "text",
		}, nil); err != nil {
			return fmt.Errorf("creating text index: %w", err)
		}
		return nil
	})
}

// DropCollection implements VectorDatabase.
func (s *RESTStore) DropCollection(ctx context.Context, name string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendREST, "drop_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	if err := s.do(ctx, http.MethodDelete, collectionPath(name), nil, nil); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	s.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

// HasCollection implements VectorDatabase.
func (s *RESTStore) HasCollection(ctx context.Context, name string) (exists bool, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return false, err
	}
	ctx, done := startOperation(ctx, backendREST, "has_collection", name)
	defer func() { done(err) }()

	err = s.do(ctx, http.MethodGet, collectionPath(name), nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
}

// ListCollections implements VectorDatabase.
func (s *RESTStore) ListCollections(ctx context.Context) (names []string, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendREST, "list_collections", "")
	defer func() { done(err) }()

	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	names = make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// namedDense reads the collection's vector config. Plain collections report
// a single {"size", "distance"} object, hybrid ones a map of named vectors.
func (s *RESTStore) namedDense(ctx context.Context, collection string) (bool, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors map[string]json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, collectionPath(collection), nil, &resp); err != nil {
		return false, err
	}
	vectors := resp.Result.Config.Params.Vectors
	if len(vectors) == 0 {
		return false, errors.New("collection info carries no vector config")
	}
	if _, plain := vectors["size"]; plain {
		return false, nil
	}
	_, named := vectors[AnnsFieldDense]
	return named, nil
}

// restPoint is the upsert wire format. Exactly one of Vector or Vectors is set.
type restPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Vectors map[string]any `json:"vectors,omitempty"`
	Payload map[string]any `json:"payload"`
}

// Insert implements VectorDatabase.
func (s *RESTStore) Insert(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert", collection, docs, false)
}

// InsertHybrid implements VectorDatabase.
func (s *RESTStore) InsertHybrid(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert_hybrid", collection, docs, true)
}

func (s *RESTStore) upsert(ctx context.Context, op, collection string, docs []VectorDocument, hybrid bool) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendREST, op, collection)
	defer func() { done(err) }()

	err = writeBatches(docs, s.config.BatchSize, func(batch []VectorDocument) error {
		points := make([]restPoint, len(batch))
		for i, doc := range batch {
			payload, err := documentPayload(doc)
			if err != nil {
				return err
			}
			p := restPoint{ID: PointID(doc.ID), Payload: payload}
			if hybrid {
				p.Vectors = map[string]any{
					AnnsFieldDense:  doc.Vector,
					AnnsFieldSparse: SynthesizeSparse(doc.Content),
				}
			} else {
				p.Vector = doc.Vector
			}
			points[i] = p
		}
		if err := s.do(ctx, http.MethodPut, collectionPath(collection, "points")+"?wait=true",
			map[string]any{"points": points}, nil); err != nil {
			return err
		}
		recordBatch(backendREST, len(batch))
		return nil
	})
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", collection, err)
	}
	s.logger.Debug("documents inserted",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
		zap.Bool("hybrid", hybrid),
	)
	return nil
}

// restScoredPoint is a search hit.
type restScoredPoint struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// search issues a points/search request. vectorName selects a named vector.
func (s *RESTStore) search(ctx context.Context, collection string, vector []float32, vectorName string, limit int, filterExpr string) ([]VectorSearchResult, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if vectorName != "" {
		req["vector"] = map[string]any{"name": vectorName, "vector": vector}
	} else {
		req["vector"] = vector
	}
	if p := TranslateFilter(filterExpr, s.logger); p != nil {
		req["filter"] = restFilter(p)
	}

	var resp struct {
		Result []restScoredPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, collectionPath(collection, "points", "search"), req, &resp); err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}

	results := make([]VectorSearchResult, len(resp.Result))
	for i, hit := range resp.Result {
		doc := documentFromPayload(pointIDString(hit.ID), hit.Payload, s.logger)
		doc.Vector = vector
		results[i] = VectorSearchResult{Document: doc, Score: hit.Score}
	}
	return results, nil
}

// Search implements VectorDatabase.
func (s *RESTStore) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) (results []VectorSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendREST, "search", collection)
	defer func() { done(err) }()

	name := s.vectors.resolve(ctx, collection, "", s.namedDense, s.logger)
	return s.search(ctx, collection, vector, name, opts.topK(), opts.FilterExpr)
}

// HybridSearch implements VectorDatabase.
func (s *RESTStore) HybridSearch(ctx context.Context, collection string, requests []HybridSearchRequest, opts HybridSearchOptions) (results []HybridSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendREST, "hybrid_search", collection)
	defer func() { done(err) }()

	dense, lexical, err := splitHybridRequests(requests)
	if err != nil {
		return nil, err
	}
	name := s.vectors.resolve(ctx, collection, denseVectorName(dense), s.namedDense, s.logger)
	hits, err := s.search(ctx, collection, dense.Vector, name, hybridLimit(opts, dense), opts.FilterExpr)
	if err != nil {
		return nil, err
	}
	return rerank(opts.Rerank, lexical, toHybridResults(hits)), nil
}

// Query implements VectorDatabase.
func (s *RESTStore) Query(ctx context.Context, collection, filter string, outputFields []string, limit int) (rows []map[string]any, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendREST, "query", collection)
	defer func() { done(err) }()

	if limit < 1 {
		limit = DefaultQueryLimit
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if p := TranslateFilter(filter, s.logger); p != nil {
		req["filter"] = restFilter(p)
	}

	var resp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, collectionPath(collection, "points", "scroll"), req, &resp); err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	rows = make([]map[string]any, len(resp.Result.Points))
	for i, p := range resp.Result.Points {
		rows[i] = projectPayload(pointIDString(p.ID), p.Payload, outputFields)
	}
	return rows, nil
}

// Delete implements VectorDatabase.
func (s *RESTStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendREST, "delete", collection)
	defer func() { done(err) }()

	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	if err := s.do(ctx, http.MethodPost, collectionPath(collection, "points", "delete")+"?wait=true",
		map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Close implements VectorDatabase.
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// restFilter renders a Predicate in Qdrant's JSON filter format.
func restFilter(p *Predicate) map[string]any {
	out := map[string]any{}
	if len(p.Must) > 0 {
		out["must"] = restConditions(p.Must)
	}
	if len(p.Should) > 0 {
		out["should"] = restConditions(p.Should)
	}
	return out
}

func restConditions(conds []Condition) []map[string]any {
	out := make([]map[string]any, len(conds))
	for i, c := range conds {
		if c.Range != nil {
			r := map[string]any{}
			if c.Range.Gt != nil {
				r["gt"] = *c.Range.Gt
			}
			if c.Range.Gte != nil {
				r["gte"] = *c.Range.Gte
			}
			if c.Range.Lt != nil {
				r["lt"] = *c.Range.Lt
			}
			if c.Range.Lte != nil {
				r["lte"] = *c.Range.Lte
			}
			out[i] = map[string]any{"key": c.Field, "range": r}
			continue
		}
		out[i] = map[string]any{"key": c.Field, "match": map[string]any{"value": c.Value}}
	}
	return out
}

var _ VectorDatabase = (*RESTStore)(nil)
