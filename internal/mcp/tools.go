package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/indexer"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

const (
	defaultTopK = 10
	maxTopK     = 100
)

var errInvalidArgument = errors.New("invalid argument")

func (s *Server) registerTools() {
	s.registerIndexTools()
	s.registerSearchTools()
}

// instrument wraps a tool handler with invocation metrics and error logging.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		res, out, err := h(ctx, req, args)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

// collectionFor returns collection when set, otherwise the name derived from
// path.
func collectionFor(collection, path string, hybrid bool) (string, error) {
	if collection != "" {
		return collection, vectorstore.ValidateCollectionName(collection)
	}
	if path == "" {
		return "", fmt.Errorf("%w: path or collection is required", errInvalidArgument)
	}
	return indexer.CollectionName(path, hybrid)
}

// ===== INDEX TOOLS =====

type indexInput struct {
	Path       string `json:"path" jsonschema:"Absolute path of the directory to index"`
	Collection string `json:"collection,omitempty" jsonschema:"Target collection (default derived from path)"`
	Hybrid     bool   `json:"hybrid,omitempty" jsonschema:"Store sparse vectors so the collection supports hybrid search"`
}

type indexOutput struct {
	Collection string        `json:"collection" jsonschema:"Collection the chunks were written to"`
	Stats      indexer.Stats `json:"stats" jsonschema:"Files, chunks, skipped files and redacted secrets"`
}

type clearInput struct {
	Path       string `json:"path,omitempty" jsonschema:"Directory whose index is dropped"`
	Collection string `json:"collection,omitempty" jsonschema:"Collection to drop; overrides path"`
	Hybrid     bool   `json:"hybrid,omitempty" jsonschema:"Derive the hybrid collection name from path"`
}

type clearOutput struct {
	Collection string `json:"collection" jsonschema:"Collection that was dropped"`
	Existed    bool   `json:"existed" jsonschema:"False when there was nothing to drop"`
}

func (s *Server) registerIndexTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a directory for semantic code search. Re-indexing overwrites chunks with the same path and line range.",
	}, instrument(s, "index_codebase", func(ctx context.Context, _ *mcp.CallToolRequest, args indexInput) (*mcp.CallToolResult, indexOutput, error) {
		if args.Path == "" {
			return nil, indexOutput{}, fmt.Errorf("%w: path is required", errInvalidArgument)
		}
		collection, err := collectionFor(args.Collection, args.Path, args.Hybrid)
		if err != nil {
			return nil, indexOutput{}, err
		}
		stats, err := s.indexer.Index(ctx, args.Path, collection, args.Hybrid)
		if err != nil {
			return nil, indexOutput{}, fmt.Errorf("index %s: %w", args.Path, err)
		}
		return nil, indexOutput{Collection: collection, Stats: stats}, nil
	}))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Drop the collection holding the index of a directory.",
	}, instrument(s, "clear_index", func(ctx context.Context, _ *mcp.CallToolRequest, args clearInput) (*mcp.CallToolResult, clearOutput, error) {
		collection, err := collectionFor(args.Collection, args.Path, args.Hybrid)
		if err != nil {
			return nil, clearOutput{}, err
		}
		exists, err := s.store.HasCollection(ctx, collection)
		if err != nil {
			return nil, clearOutput{}, err
		}
		if exists {
			if err := s.store.DropCollection(ctx, collection); err != nil {
				return nil, clearOutput{}, err
			}
		}
		return nil, clearOutput{Collection: collection, Existed: exists}, nil
	}))
}

// ===== SEARCH TOOLS =====

type searchInput struct {
	Query      string `json:"query" jsonschema:"Natural-language description of the code to find"`
	Path       string `json:"path,omitempty" jsonschema:"Indexed directory to search"`
	Collection string `json:"collection,omitempty" jsonschema:"Collection to search; overrides path"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"Maximum results to return (default: 10, max: 100)"`
	Filter     string `json:"filter,omitempty" jsonschema:"Filter expression such as fileExtension == \".go\" or startLine >= 100"`
	Hybrid     bool   `json:"hybrid,omitempty" jsonschema:"Fuse dense results with a lexical match on the query"`
	Rerank     string `json:"rerank,omitempty" jsonschema:"Hybrid rerank strategy: majority_overlap, lexical_boost or none (default: majority_overlap)"`
}

type searchHit struct {
	RelativePath string  `json:"relative_path"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	Score        float32 `json:"score"`
	Content      string  `json:"content"`
}

type searchOutput struct {
	Collection string      `json:"collection" jsonschema:"Collection that was searched"`
	Results    []searchHit `json:"results" jsonschema:"Matching chunks, best first"`
	Count      int         `json:"count" jsonschema:"Number of results"`
}

type listInput struct{}

type listOutput struct {
	Collections []string `json:"collections" jsonschema:"Names of all collections"`
}

func (s *Server) registerSearchTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed codebase with natural language. Returns file paths, line ranges and chunk content.",
	}, instrument(s, "search_code", s.searchCode))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the collections in the vector store.",
	}, instrument(s, "list_collections", func(ctx context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, listOutput, error) {
		names, err := s.store.ListCollections(ctx)
		if err != nil {
			return nil, listOutput{}, err
		}
		if names == nil {
			names = []string{}
		}
		return nil, listOutput{Collections: names}, nil
	}))
}

func (s *Server) searchCode(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
	if args.Query == "" {
		return nil, searchOutput{}, fmt.Errorf("%w: query is required", errInvalidArgument)
	}
	collection, err := collectionFor(args.Collection, args.Path, args.Hybrid)
	if err != nil {
		return nil, searchOutput{}, err
	}
	strategy, err := vectorstore.ParseRerankStrategy(args.Rerank)
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("%w: %v", errInvalidArgument, err)
	}
	topK := args.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	topK = min(topK, maxTopK)

	vector, err := s.embedder.EmbedQuery(ctx, args.Query)
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("embed query: %w", err)
	}

	out := searchOutput{Collection: collection, Results: []searchHit{}}
	if args.Hybrid {
		hits, err := s.store.HybridSearch(ctx, collection, []vectorstore.HybridSearchRequest{
			vectorstore.DenseRequest(vector, topK),
			vectorstore.LexicalRequest(args.Query, topK),
		}, vectorstore.HybridSearchOptions{Limit: topK, FilterExpr: args.Filter, Rerank: strategy})
		if err != nil {
			return nil, searchOutput{}, err
		}
		for _, h := range hits {
			out.Results = append(out.Results, newSearchHit(h.Document, h.Score))
		}
	} else {
		hits, err := s.store.Search(ctx, collection, vector, vectorstore.SearchOptions{TopK: topK, FilterExpr: args.Filter})
		if err != nil {
			return nil, searchOutput{}, err
		}
		for _, h := range hits {
			out.Results = append(out.Results, newSearchHit(h.Document, h.Score))
		}
	}
	out.Count = len(out.Results)
	return nil, out, nil
}

func newSearchHit(doc vectorstore.VectorDocument, score float32) searchHit {
	return searchHit{
		RelativePath: doc.RelativePath,
		StartLine:    doc.StartLine,
		EndLine:      doc.EndLine,
		Score:        score,
		Content:      doc.Content,
	}
}
