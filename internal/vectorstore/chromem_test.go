package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemStore(t *testing.T, path string) *ChromemStore {
	t.Helper()
	s := NewChromemStore(ChromemConfig{Path: path}, zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func chromemFixtures() []VectorDocument {
	return []VectorDocument{
		{
			ID: "main.go:1-20", Vector: []float32{1, 0, 0},
			Content:      "package main starts the vector database server",
			RelativePath: "main.go", StartLine: 1, EndLine: 20, FileExtension: ".go",
			Metadata: map[string]any{"lang": "go"},
		},
		{
			ID: "README.md:1-10", Vector: []float32{0, 1, 0},
			Content:      "readme describes installation steps",
			RelativePath: "README.md", StartLine: 1, EndLine: 10, FileExtension: ".md",
		},
		{
			ID: "server.go:30-60", Vector: []float32{0.9, 0.1, 0},
			Content:      "http server handles search requests",
			RelativePath: "server.go", StartLine: 30, EndLine: 60, FileExtension: ".go",
			Metadata: map[string]any{"lang": "go", "exported": true},
		},
	}
}

func TestChromemStore_EndToEnd(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, "code", 3))
	require.NoError(t, s.CreateCollection(ctx, "code", 3))
	require.NoError(t, s.Insert(ctx, "code", chromemFixtures()))

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, names)

	results, err := s.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "main.go:1-20", results[0].Document.ID)
	assert.Equal(t, "server.go:30-60", results[1].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, map[string]any{"lang": "go"}, results[0].Document.Metadata)
	assert.Equal(t, 20, results[0].Document.EndLine)
	assert.Equal(t, []float32{1, 0, 0}, results[0].Document.Vector)

	results, err = s.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{FilterExpr: `fileExtension == ".md"`})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "README.md:1-10", results[0].Document.ID)
	assert.Equal(t, map[string]any{}, results[0].Document.Metadata)

	results, err = s.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{FilterExpr: "startLine >= 30"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "server.go:30-60", results[0].Document.ID)

	rows, err := s.Query(ctx, "code", `relativePath in ["main.go", "server.go"]`, []string{"relativePath", "metadata"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Contains(t, []string{"main.go:1-20", "server.go:30-60"}, row["id"])
		assert.Contains(t, row["metadata"], "lang")
	}

	require.NoError(t, s.Delete(ctx, "code", []string{"main.go:1-20"}))
	rows, err = s.Query(ctx, "code", "", nil, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, s.DropCollection(ctx, "code"))
	exists, err := s.HasCollection(ctx, "code")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_SingleDocumentScenario(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, "scenario", 4))
	require.NoError(t, s.Insert(ctx, "scenario", []VectorDocument{
		{ID: "d1", Vector: []float32{1, 0, 0, 0}, Content: "login handler"},
	}))

	results, err := s.Search(ctx, "scenario", []float32{1, 0, 0, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Document.ID)
	assert.Equal(t, "login handler", results[0].Document.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	exists, err := s.HasCollection(ctx, "scenario")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DropCollection(ctx, "scenario"))
	exists, err = s.HasCollection(ctx, "scenario")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_MetadataKeepsIntegers(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "code", 3))

	metadata := map[string]any{"size": int64(9007199254740993), "ratio": 0.5, "lang": "go"}
	require.NoError(t, s.Insert(ctx, "code", []VectorDocument{
		{ID: "big", Vector: []float32{1, 0, 0}, Content: "large file", Metadata: metadata},
	}))

	results, err := s.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, metadata, results[0].Document.Metadata)

	rows, err := s.Query(ctx, "code", "", []string{"metadata"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, metadata, rows[0]["metadata"])
}

func TestChromemStore_UpsertOverwrites(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "code", 3))

	doc := chromemFixtures()[0]
	require.NoError(t, s.Insert(ctx, "code", []VectorDocument{doc}))
	doc.Content = "rewritten chunk"
	require.NoError(t, s.Insert(ctx, "code", []VectorDocument{doc}))

	rows, err := s.Query(ctx, "code", "", []string{"content"}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rewritten chunk", rows[0]["content"])
}

func TestChromemStore_HybridSearch(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.CreateHybridCollection(ctx, "hybrid", 3))
	require.NoError(t, s.InsertHybrid(ctx, "hybrid", chromemFixtures()))

	results, err := s.HybridSearch(ctx, "hybrid", []HybridSearchRequest{
		DenseRequest([]float32{1, 0, 0}, 3),
		LexicalRequest("search requests", 3),
	}, HybridSearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "server.go:30-60", results[0].Document.ID)
	assert.Nil(t, results[0].Document.Vector)

	results, err = s.HybridSearch(ctx, "hybrid", []HybridSearchRequest{
		DenseRequest([]float32{1, 0, 0}, 3),
		LexicalRequest("HTTP server", 3),
	}, HybridSearchOptions{Rerank: RerankLexicalBoost})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "server.go:30-60", results[0].Document.ID)
	assert.Equal(t, "main.go:1-20", results[1].Document.ID)
}

func TestChromemStore_DimensionMismatch(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "code", 3))

	err := s.Insert(ctx, "code", []VectorDocument{{ID: "x", Vector: []float32{1, 0}, Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestChromemStore_MissingCollection(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()

	_, err := s.Search(ctx, "nope", []float32{1}, SearchOptions{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Insert(ctx, "nope", chromemFixtures()), ErrNotFound)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	s := newTestChromemStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "code", 3))

	results, err := s.Search(ctx, "code", []float32{1, 0, 0}, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)

	rows, err := s.Query(ctx, "code", "", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestChromemStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := NewChromemStore(ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, s.CreateCollection(ctx, "code", 3))
	require.NoError(t, s.Insert(ctx, "code", chromemFixtures()))
	require.NoError(t, s.Close())

	reopened := newTestChromemStore(t, dir)
	results, err := reopened.Search(ctx, "code", []float32{0, 1, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "README.md:1-10", results[0].Document.ID)

	rows, err := reopened.Query(ctx, "code", `fileExtension == ".go"`, nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	err = reopened.Insert(ctx, "code", []VectorDocument{{ID: "bad", Vector: []float32{1, 0}, Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestNewStore(t *testing.T) {
	for provider, want := range map[string]any{
		"":        (*RESTStore)(nil),
		"REST":    (*RESTStore)(nil),
		"chromem": (*ChromemStore)(nil),
	} {
		store, err := NewStore(StoreConfig{Provider: provider}, nil)
		require.NoError(t, err, provider)
		assert.IsType(t, want, store, provider)
		_ = store.Close()
	}

	_, err := NewStore(StoreConfig{Provider: "milvus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "unsupported vectorstore provider: milvus")
}
