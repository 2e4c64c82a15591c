package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultOpenAIModel = "text-embedding-3-small"
	// maxOpenAIBatch is the largest input array the embeddings endpoint accepts
	// comfortably within its token limit for code chunks.
	maxOpenAIBatch = 100
)

// OpenAIProvider calls an OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	limiter   *rate.Limiter
	// sendDimensions asks text-embedding-3 models to shorten their output.
	sendDimensions bool
	logger         *zap.Logger
	metrics        *metrics
}

// NewOpenAIProvider requires an API key unless BaseURL points elsewhere.
func NewOpenAIProvider(cfg Config, logger *zap.Logger) (*OpenAIProvider, error) {
	if !cfg.APIKey.IsSet() && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: openai provider requires embeddings.api_key", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxOpenAIBatch {
		cfg.BatchSize = maxOpenAIBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey.Value())
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	native := knownDimensions[cfg.Model]
	return &OpenAIProvider{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		dimension:      resolveDimension(cfg),
		batchSize:      cfg.BatchSize,
		limiter:        newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		sendDimensions: cfg.Dimension > 0 && native > 0 && cfg.Dimension != native,
		logger:         logger,
		metrics:        newMetrics(logger),
	}, nil
}

func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Close() error { return nil }

func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.batchSize) {
		vectors, err := p.embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if err := waitTurn(ctx, p.limiter); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { p.metrics.record(ctx, ProviderOpenAI, p.model, start, len(texts), err) }()

	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	}
	if p.sendDimensions {
		req.Dimensions = p.dimension
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	// Data is documented to be in input order, but carries an index anyway.
	vectors = make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: response index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}
	if err := checkVectors(vectors, len(texts), p.dimension); err != nil {
		return nil, err
	}

	p.logger.Debug("embedded batch",
		zap.Int("texts", len(texts)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return vectors, nil
}

var _ Provider = (*OpenAIProvider)(nil)
