package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const backendGRPC = "grpc"

// GRPCConfig configures a GRPCStore.
type GRPCConfig struct {
	// Host defaults to localhost.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// APIKey is the optional API key.
	APIKey string

	// MaxMessageSize bounds gRPC message size in bytes. Default: 50MB.
	MaxMessageSize int

	// BatchSize overrides DefaultBatchSize.
	BatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *GRPCConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate checks the connection settings.
func (c *GRPCConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d (must be 1-65535)", ErrInvalidConfig, c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: invalid max message size %d", ErrInvalidConfig, c.MaxMessageSize)
	}
	return nil
}

// qdrantClient is the subset of *qdrant.Client used by GRPCStore.
type qdrantClient interface {
	GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, name string) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// GRPCStore implements VectorDatabase with the official Qdrant gRPC client.
type GRPCStore struct {
	config GRPCConfig
	logger *zap.Logger
	gate   *readyGate
	dial    func() (qdrantClient, error)
	client  qdrantClient
	vectors denseNames
}

// NewGRPCStore returns a store whose client construction has already started.
func NewGRPCStore(config GRPCConfig, logger *zap.Logger) *GRPCStore {
	config.ApplyDefaults()
	s := newGRPCStore(config, logger, func() (qdrantClient, error) {
		return dialQdrant(config)
	})
	return s
}

func newGRPCStore(config GRPCConfig, logger *zap.Logger, dial func() (qdrantClient, error)) *GRPCStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GRPCStore{config: config, logger: logger, dial: dial}
	s.gate = startGate(s.initialize)
	return s
}

func dialQdrant(config GRPCConfig) (qdrantClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	qc := &qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	}
	if !config.UseTLS {
		qc.GrpcOptions = append(qc.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}
	return client, nil
}

func (s *GRPCStore) initialize() error {
	s.logger.Info("connecting to qdrant",
		zap.String("host", s.config.Host),
		zap.Int("port", s.config.Port),
		zap.Bool("tls", s.config.UseTLS),
	)
	client, err := s.dial()
	if err != nil {
		s.logger.Error("qdrant client setup failed", zap.Error(err))
		return err
	}
	s.client = client
	return nil
}

// isNotFound reports gRPC NotFound statuses.
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// CreateCollection implements VectorDatabase.
func (s *GRPCStore) CreateCollection(ctx context.Context, name string, dimension int) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendGRPC, "create_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	return ensureCollection(ctx, s, s.logger, name, dimension, func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
}

// CreateHybridCollection implements VectorDatabase.
func (s *GRPCStore) CreateHybridCollection(ctx context.Context, name string, dimension int) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendGRPC, "create_hybrid_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	return ensureCollection(ctx, s, s.logger, name, dimension, func() error {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				AnnsFieldDense: {Size: uint64(dimension), Distance: qdrant.Distance_Cosine},
			}),
			SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
				AnnsFieldSparse: {},
			}),
			OnDiskPayload: qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			FieldName:      fieldContent,
			FieldType:      qdrant.FieldType_FieldTypeText.Enum(),
		}); err != nil {
			return fmt.Errorf("creating text index: %w", err)
		}
		return nil
	})
}

// DropCollection implements VectorDatabase.
func (s *GRPCStore) DropCollection(ctx context.Context, name string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendGRPC, "drop_collection", name)
	defer func() { done(err) }()
	defer s.vectors.forget(name)

	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	s.logger.Info("collection dropped", zap.String("collection", name))
	return nil
}

// HasCollection implements VectorDatabase.
func (s *GRPCStore) HasCollection(ctx context.Context, name string) (exists bool, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return false, err
	}
	ctx, done := startOperation(ctx, backendGRPC, "has_collection", name)
	defer func() { done(err) }()

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return info != nil, nil
}

// ListCollections implements VectorDatabase.
func (s *GRPCStore) ListCollections(ctx context.Context) (names []string, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendGRPC, "list_collections", "")
	defer func() { done(err) }()

	names, err = s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return names, nil
}

// Insert implements VectorDatabase.
func (s *GRPCStore) Insert(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert", collection, docs, false)
}

// InsertHybrid implements VectorDatabase.
func (s *GRPCStore) InsertHybrid(ctx context.Context, collection string, docs []VectorDocument) error {
	return s.upsert(ctx, "insert_hybrid", collection, docs, true)
}

func (s *GRPCStore) upsert(ctx context.Context, op, collection string, docs []VectorDocument, hybrid bool) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendGRPC, op, collection)
	defer func() { done(err) }()

	err = writeBatches(docs, s.config.BatchSize, func(batch []VectorDocument) error {
		points := make([]*qdrant.PointStruct, len(batch))
		for i, doc := range batch {
			p, err := toQdrantPoint(doc, hybrid)
			if err != nil {
				return err
			}
			points[i] = p
		}
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return err
		}
		recordBatch(backendGRPC, len(batch))
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

func (s *GRPCStore) search(ctx context.Context, collection string, vector []float32, vectorName string, limit int, filterExpr string) ([]VectorSearchResult, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
		Filter:         grpcFilter(TranslateFilter(filterExpr, s.logger)),
	}
	if vectorName != "" {
		req.Using = qdrant.PtrOf(vectorName)
	}

	hits, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	results := make([]VectorSearchResult, len(hits))
	for i, hit := range hits {
		doc := documentFromPayload(extractPointID(hit.GetId()), extractPayload(hit.GetPayload()), s.logger)
		doc.Vector = vector
		results[i] = VectorSearchResult{Document: doc, Score: hit.GetScore()}
	}
	return results, nil
}

// namedDense reports whether the collection was created with named vectors
// holding AnnsFieldDense.
func (s *GRPCStore) namedDense(ctx context.Context, collection string) (bool, error) {
	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return false, err
	}
	vc := info.GetConfig().GetParams().GetVectorsConfig()
	if vc == nil {
		return false, errors.New("collection info carries no vector config")
	}
	_, named := vc.GetParamsMap().GetMap()[AnnsFieldDense]
	return named, nil
}

// Search implements VectorDatabase.
func (s *GRPCStore) Search(ctx context.Context, collection string, vector []float32, opts SearchOptions) (results []VectorSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendGRPC, "search", collection)
	defer func() { done(err) }()

	name := s.vectors.resolve(ctx, collection, "", s.namedDense, s.logger)
	return s.search(ctx, collection, vector, name, opts.topK(), opts.FilterExpr)
}

// HybridSearch implements VectorDatabase.
func (s *GRPCStore) HybridSearch(ctx context.Context, collection string, requests []HybridSearchRequest, opts HybridSearchOptions) (results []HybridSearchResult, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendGRPC, "hybrid_search", collection)
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
func (s *GRPCStore) Query(ctx context.Context, collection, filter string, outputFields []string, limit int) (rows []map[string]any, err error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, err
	}
	ctx, done := startOperation(ctx, backendGRPC, "query", collection)
	defer func() { done(err) }()

	if limit < 1 {
		limit = DefaultQueryLimit
	}
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         grpcFilter(TranslateFilter(filter, s.logger)),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	rows = make([]map[string]any, len(points))
	for i, p := range points {
		rows[i] = projectPayload(extractPointID(p.GetId()), extractPayload(p.GetPayload()), outputFields)
	}
	return rows, nil
}

// Delete implements VectorDatabase.
func (s *GRPCStore) Delete(ctx context.Context, collection string, ids []string) (err error) {
	if err := s.gate.wait(ctx); err != nil {
		return err
	}
	ctx, done := startOperation(ctx, backendGRPC, "delete", collection)
	defer func() { done(err) }()

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(PointID(id))
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("deleting from %s: %w", collection, err)
	}
	return nil
}

// Close implements VectorDatabase. It waits for initialization so a client
// created in the background is not leaked.
func (s *GRPCStore) Close() error {
	<-s.gate.done
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var _ VectorDatabase = (*GRPCStore)(nil)
