package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/codeindex/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the provider could not produce vectors.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider produces dense vectors for text.
type Provider interface {
	// EmbedDocuments returns one vector per text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension is the length of every vector the provider returns.
	Dimension() int
	Close() error
}

// Provider names.
const (
	ProviderTEI    = "tei"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   config.Secret
	// Dimension overrides detection from the model name when positive.
	Dimension int
	Timeout   time.Duration
	// BatchSize caps the texts sent per request.
	BatchSize int
	// RequestsPerSecond limits requests to the endpoint; zero is unlimited.
	RequestsPerSecond float64
	Burst             int
}

// FromAppConfig converts the file/env settings.
func FromAppConfig(c config.EmbeddingsConfig) Config {
	return Config{
		Provider:  c.Provider,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		APIKey:    c.APIKey,
		Dimension: c.Dimension,
		Timeout:   c.Timeout.Duration(),

		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// NewProvider builds the provider named by cfg.Provider. A nil logger is
// replaced by a no-op logger.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderTEI, "":
		return NewTEIProvider(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// knownDimensions lists models whose names do not reveal their size.
var knownDimensions = map[string]int{
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"text-embedding-ada-002":                 1536,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"nomic-ai/nomic-embed-text-v1.5":         768,
}

// dimensionForModel guesses the output size from the model name. Unknown
// models fall back to 384, the size of the default TEI model.
func dimensionForModel(model string) int {
	if d, ok := knownDimensions[model]; ok {
		return d
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}

// resolveDimension prefers an explicit dimension over detection.
func resolveDimension(cfg Config) int {
	if cfg.Dimension > 0 {
		return cfg.Dimension
	}
	return dimensionForModel(cfg.Model)
}

// batches splits texts into consecutive slices of at most size.
func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

// newLimiter returns nil, meaning unlimited, unless rps is positive.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(burst, 1))
}

// waitTurn blocks until l allows another request or ctx ends.
func waitTurn(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// checkVectors verifies the provider returned one vector of the expected
// length per input.
func checkVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingFailed, i, len(v), dim)
		}
	}
	return nil
}
