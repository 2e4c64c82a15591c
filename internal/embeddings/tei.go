package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTEIBaseURL   = "http://localhost:8080"
	defaultTEIModel     = "BAAI/bge-small-en-v1.5"
	defaultTEIBatchSize = 32
	maxErrorBody        = 4096
)

// TEIProvider calls the /embed endpoint of a Text Embeddings Inference server.
type TEIProvider struct {
	baseURL   string
	model     string
	apiKey    string
	dimension int
	batchSize int
	limiter   *rate.Limiter
	client    *http.Client
	logger    *zap.Logger
	metrics   *metrics
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// NewTEIProvider applies the TEI defaults to cfg. The model name is only
// used for dimension detection and metrics; the server decides what it runs.
func NewTEIProvider(cfg Config, logger *zap.Logger) (*TEIProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTEIBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("%w: TEI base URL must be http(s): %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Model == "" {
		cfg.Model = defaultTEIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultTEIBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TEIProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey.Value(),
		dimension: resolveDimension(cfg),
		batchSize: cfg.BatchSize,
		limiter:   newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		metrics:   newMetrics(logger),
	}, nil
}

func (p *TEIProvider) Dimension() int { return p.dimension }

// Close is a no-op; the HTTP client holds no dedicated resources.
func (p *TEIProvider) Close() error { return nil }

func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
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

func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *TEIProvider) embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if err := waitTurn(ctx, p.limiter); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { p.metrics.record(ctx, ProviderTEI, p.model, start, len(texts), err) }()

	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
	}
	if err := checkVectors(vectors, len(texts), p.dimension); err != nil {
		return nil, err
	}

	p.logger.Debug("embedded batch", zap.Int("texts", len(texts)), zap.Duration("elapsed", time.Since(start)))
	return vectors, nil
}

var _ Provider = (*TEIProvider)(nil)
