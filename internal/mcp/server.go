package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/embeddings"
	"github.com/fyrsmithlabs/codeindex/internal/indexer"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// Server serves the codeindex tools over MCP.
type Server struct {
	mcp      *mcp.Server
	store    vectorstore.VectorDatabase
	embedder embeddings.Provider
	indexer  *indexer.Indexer
	metrics  *Metrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "codeindex")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. MCP owns stdout, so it must write
	// elsewhere.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "codeindex",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a server whose tools share store, embedder and ix.
func NewServer(cfg *Config, store vectorstore.VectorDatabase, embedder embeddings.Provider, ix *indexer.Indexer) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if store == nil {
		return nil, errors.New("vector store is required")
	}
	if embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	if ix == nil {
		return nil, errors.New("indexer is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		store:    store,
		embedder: embedder,
		indexer:  ix,
		metrics:  NewMetrics(cfg.Logger),
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until the client disconnects or ctx is
// done.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
