package indexer

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/config"
	"github.com/fyrsmithlabs/codeindex/internal/secrets"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// fakeEmbedder returns a small deterministic vector per text.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   []int
	failErr error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.calls = append(f.calls, len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{1, float32(len(text)%7) + 1, 0.5}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Close() error   { return nil }

func (f *fakeEmbedder) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func newTestStore(t *testing.T) vectorstore.VectorDatabase {
	t.Helper()
	s := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIndexer_Index(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":         numberedLines(5),
		"pkg/server.go":   numberedLines(12),
		"README.md":       "# codeindex\n",
		"empty.txt":       "\n\n",
		"latin1.txt":      "caf\xe9\n",
		"vendor/lib/x.go": numberedLines(3),
	})
	store := newTestStore(t)
	embedder := &fakeEmbedder{}

	ix, err := New(store, embedder, Options{ChunkLines: 5, ChunkOverlap: 0, EmbedBatchSize: 2}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	stats, err := ix.Index(ctx, root, "code", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 3, Chunks: 5, Skipped: 2}, stats)
	assert.Equal(t, []int{2, 2, 1}, embedder.batchSizes())

	exists, err := store.HasCollection(ctx, "code")
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := store.Query(ctx, "code", `relativePath == "pkg/server.go"`, []string{"startLine", "metadata"}, 0)
	require.NoError(t, err)
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row["id"].(string)
		assert.Contains(t, row["metadata"], "language")
	}
	assert.ElementsMatch(t, []string{"pkg/server.go:1-5", "pkg/server.go:6-10", "pkg/server.go:11-12"}, ids)

	results, err := store.Search(ctx, "code", []float32{1, 1, 0.5}, vectorstore.SearchOptions{
		TopK:       10,
		FilterExpr: `fileExtension == ".md"`,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "README.md:1-1", results[0].Document.ID)
	assert.Equal(t, "# codeindex", results[0].Document.Content)
}

func TestIndexer_ReindexOverwrites(t *testing.T) {
	root := writeTree(t, map[string]string{"main.go": numberedLines(4)})
	store := newTestStore(t)
	ix, err := New(store, &fakeEmbedder{}, Options{ChunkLines: 10}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	for range 2 {
		_, err := ix.Index(ctx, root, "code", false)
		require.NoError(t, err)
	}
	rows, err := store.Query(ctx, "code", "", nil, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIndexer_Hybrid(t *testing.T) {
	root := writeTree(t, map[string]string{"auth.go": "func loginHandler() {}\n"})
	store := newTestStore(t)
	ix, err := New(store, &fakeEmbedder{}, Options{ChunkLines: 10}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = ix.Index(ctx, root, "hybrid", true)
	require.NoError(t, err)

	results, err := store.HybridSearch(ctx, "hybrid", []vectorstore.HybridSearchRequest{
		vectorstore.DenseRequest([]float32{1, 1, 0.5}, 5),
		vectorstore.LexicalRequest("loginHandler", 5),
	}, vectorstore.HybridSearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth.go:1-1", results[0].Document.ID)
}

func TestIndexer_Progress(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})
	var out bytes.Buffer
	ix, err := New(newTestStore(t), &fakeEmbedder{}, Options{ChunkLines: 10, Progress: &out}, nil)
	require.NoError(t, err)

	_, err = ix.Index(context.Background(), root, "code", false)
	require.NoError(t, err)
	assert.NotEmpty(t, out.String())
}

func TestIndexer_EmbedFailure(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	boom := errors.New("embedding backend down")
	ix, err := New(newTestStore(t), &fakeEmbedder{failErr: boom}, Options{ChunkLines: 10}, nil)
	require.NoError(t, err)

	_, err = ix.Index(context.Background(), root, "code", false)
	assert.ErrorIs(t, err, boom)
}

func TestIndexer_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.go": "package a\n"})
	ix, err := New(newTestStore(t), &fakeEmbedder{}, Options{ChunkLines: 10}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.Index(ctx, root, "code", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := New(nil, &fakeEmbedder{}, Options{ChunkLines: 10}, nil)
	assert.Error(t, err)
	_, err = New(store, nil, Options{ChunkLines: 10}, nil)
	assert.Error(t, err)
	_, err = New(store, &fakeEmbedder{}, Options{ChunkLines: 10, ChunkOverlap: 10}, nil)
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default().Indexer)
	assert.Equal(t, 60, opts.ChunkLines)
	assert.Equal(t, 10, opts.ChunkOverlap)
	assert.Equal(t, int64(1<<20), opts.MaxFileBytes)
	assert.Equal(t, []string{"**/*"}, opts.Include)
	assert.Equal(t, []string{".gitignore", ".codeindexignore"}, opts.IgnoreFiles)
	assert.True(t, opts.RedactSecrets)
}

func TestIndexer_IgnoreFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		".gitignore":     "generated/\n*.log\n",
		"main.go":        numberedLines(3),
		"generated/x.go": numberedLines(3),
		"debug.log":      "oops\n",
	})
	ctx := context.Background()
	opts := Options{ChunkLines: 5, Include: []string{"*.go", "*.log"}}

	ix, err := New(newTestStore(t), &fakeEmbedder{}, opts, nil)
	require.NoError(t, err)
	stats, err := ix.Index(ctx, root, "all", false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)

	opts.IgnoreFiles = []string{".gitignore"}
	store := newTestStore(t)
	ix, err = New(store, &fakeEmbedder{}, opts, nil)
	require.NoError(t, err)
	stats, err = ix.Index(ctx, root, "code", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 1, Chunks: 1}, stats)

	rows, err := store.Query(ctx, "code", "", []string{"relativePath"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "main.go", rows[0]["relativePath"])
}

func TestCollectionName(t *testing.T) {
	root := t.TempDir()

	dense, err := CollectionName(root, false)
	require.NoError(t, err)
	hybrid, err := CollectionName(root, true)
	require.NoError(t, err)
	again, err := CollectionName(filepath.Join(root, "."), false)
	require.NoError(t, err)

	assert.Regexp(t, `^code_chunks_[0-9a-f]{8}$`, dense)
	assert.Regexp(t, `^hybrid_code_chunks_[0-9a-f]{8}$`, hybrid)
	assert.Equal(t, dense, again)
	assert.NoError(t, vectorstore.ValidateCollectionName(dense))
}

// fakeScanner reports secret wherever it appears.
type fakeScanner struct{ secret string }

func (f fakeScanner) Scan(_, content string) []secrets.Finding {
	if !strings.Contains(content, f.secret) {
		return nil
	}
	return []secrets.Finding{{RuleID: "test-key", Secret: f.secret}}
}

func TestIndexer_RedactSecrets(t *testing.T) {
	const secret = "tok_9f8e7d6c5b4a"
	root := writeTree(t, map[string]string{
		"config.go": "package config\n\nconst token = \"" + secret + "\"\n",
		"main.go":   numberedLines(2),
	})
	store := newTestStore(t)
	ctx := context.Background()

	ix, err := New(store, &fakeEmbedder{}, Options{ChunkLines: 10, RedactSecrets: true}, nil)
	require.NoError(t, err)
	ix.newScanner = func(string) (secretScanner, error) { return fakeScanner{secret: secret}, nil }

	stats, err := ix.Index(ctx, root, "code", false)
	require.NoError(t, err)
	assert.Equal(t, Stats{Files: 2, Chunks: 2, Redacted: 1}, stats)

	rows, err := store.Query(ctx, "code", `relativePath == "config.go"`, []string{"content", "endLine"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	content := rows[0]["content"].(string)
	assert.NotContains(t, content, secret)
	assert.Contains(t, content, "[REDACTED:test-key]")
	assert.EqualValues(t, 3, rows[0]["endLine"])
}

func TestIndexer_RedactSecretsLoadError(t *testing.T) {
	root := writeTree(t, map[string]string{"main.go": numberedLines(2)})
	ix, err := New(newTestStore(t), &fakeEmbedder{}, Options{ChunkLines: 10, RedactSecrets: true}, nil)
	require.NoError(t, err)
	ix.newScanner = func(string) (secretScanner, error) { return nil, errors.New("bad allowlist") }

	_, err = ix.Index(context.Background(), root, "code", false)
	assert.ErrorContains(t, err, "load secret rules")
}
