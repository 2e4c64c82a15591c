package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil && !s.health.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "degraded"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleStatus reports the number of collections and whether text requests
// can be served. A store error degrades the status instead of failing.
func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{Status: "ok", Version: s.config.Version, Collections: -1}
	names, err := s.store.ListCollections(c.Request().Context())
	if err != nil {
		s.logger.Warn("listing collections for status", zap.Error(err))
		resp.Status = "degraded"
	} else {
		resp.Collections = len(names)
	}
	if s.embedder != nil {
		resp.Embeddings = true
		resp.Dimension = s.embedder.Dimension()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListCollections(c echo.Context) error {
	names, err := s.store.ListCollections(c.Request().Context())
	if err != nil {
		return s.apiError(c, "list collections", err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, ListCollectionsResponse{Collections: names})
}

func (s *Server) handleCreateCollection(c echo.Context) error {
	var req CreateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Name == "" {
		return badRequest("name field is required")
	}
	if req.Dimension == 0 && s.embedder != nil {
		req.Dimension = s.embedder.Dimension()
	}

	ctx := c.Request().Context()
	var err error
	if req.Hybrid {
		err = s.store.CreateHybridCollection(ctx, req.Name, req.Dimension)
	} else {
		err = s.store.CreateCollection(ctx, req.Name, req.Dimension)
	}
	if err != nil {
		return s.apiError(c, "create collection", err)
	}
	return c.JSON(http.StatusCreated, CollectionResponse{
		Name:      req.Name,
		Exists:    true,
		Dimension: req.Dimension,
		Hybrid:    req.Hybrid,
	})
}

func (s *Server) handleHasCollection(c echo.Context) error {
	name := c.Param("name")
	exists, err := s.store.HasCollection(c.Request().Context(), name)
	if err != nil {
		return s.apiError(c, "check collection", err)
	}
	return c.JSON(http.StatusOK, CollectionResponse{Name: name, Exists: exists})
}

func (s *Server) handleDropCollection(c echo.Context) error {
	if err := s.store.DropCollection(c.Request().Context(), c.Param("name")); err != nil {
		return s.apiError(c, "drop collection", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleInsert(c echo.Context) error {
	var req InsertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if len(req.Documents) == 0 {
		return badRequest("documents field is required")
	}
	ctx := c.Request().Context()

	var (
		missing []int
		texts   []string
	)
	for i, doc := range req.Documents {
		if doc.ID == "" {
			return badRequest("every document needs an id")
		}
		if len(doc.Vector) == 0 {
			missing = append(missing, i)
			texts = append(texts, doc.Content)
		}
	}
	if len(missing) > 0 {
		if s.embedder == nil {
			return s.apiError(c, "insert", errEmbedderUnavailable)
		}
		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return s.apiError(c, "embed documents", err)
		}
		for j, i := range missing {
			req.Documents[i].Vector = vectors[j]
		}
	}

	name := c.Param("name")
	var err error
	if req.Hybrid {
		err = s.store.InsertHybrid(ctx, name, req.Documents)
	} else {
		err = s.store.Insert(ctx, name, req.Documents)
	}
	if err != nil {
		return s.apiError(c, "insert", err)
	}
	return c.JSON(http.StatusOK, InsertResponse{Inserted: len(req.Documents)})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	ctx := c.Request().Context()

	vector := req.Vector
	if len(vector) == 0 {
		if strings.TrimSpace(req.Text) == "" {
			return badRequest("vector or text is required")
		}
		var err error
		if vector, err = s.embedQuery(c, req.Text); err != nil {
			return err
		}
	}

	results, err := s.store.Search(ctx, c.Param("name"), vector, vectorstore.SearchOptions{
		TopK:       req.TopK,
		FilterExpr: req.Filter,
	})
	if err != nil {
		return s.apiError(c, "search", err)
	}
	if results == nil {
		results = []vectorstore.VectorSearchResult{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleHybridSearch(c echo.Context) error {
	var req HybridSearchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	rerank, err := vectorstore.ParseRerankStrategy(req.Rerank)
	if err != nil {
		return badRequest(err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest("text field is required")
	}

	vector := req.Vector
	if len(vector) == 0 {
		if vector, err = s.embedQuery(c, req.Text); err != nil {
			return err
		}
	}
	limit := req.Limit
	if limit < 1 {
		limit = vectorstore.DefaultTopK
	}

	results, err := s.store.HybridSearch(c.Request().Context(), c.Param("name"),
		[]vectorstore.HybridSearchRequest{
			vectorstore.DenseRequest(vector, limit),
			vectorstore.LexicalRequest(req.Text, limit),
		},
		vectorstore.HybridSearchOptions{Limit: limit, FilterExpr: req.Filter, Rerank: rerank},
	)
	if err != nil {
		return s.apiError(c, "hybrid search", err)
	}
	if results == nil {
		results = []vectorstore.HybridSearchResult{}
	}
	return c.JSON(http.StatusOK, HybridSearchResponse{Results: results})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	rows, err := s.store.Query(c.Request().Context(), c.Param("name"), req.Filter, req.OutputFields, req.Limit)
	if err != nil {
		return s.apiError(c, "query", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(http.StatusOK, QueryResponse{Rows: rows})
}

func (s *Server) handleDelete(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if len(req.IDs) == 0 {
		return badRequest("ids field is required")
	}
	if err := s.store.Delete(c.Request().Context(), c.Param("name"), req.IDs); err != nil {
		return s.apiError(c, "delete", err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: len(req.IDs)})
}

func (s *Server) embedQuery(c echo.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, s.apiError(c, "embed query", errEmbedderUnavailable)
	}
	vector, err := s.embedder.EmbedQuery(c.Request().Context(), text)
	if err != nil {
		return nil, s.apiError(c, "embed query", err)
	}
	return vector, nil
}
