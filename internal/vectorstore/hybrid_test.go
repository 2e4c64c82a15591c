package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hits(contents ...string) []HybridSearchResult {
	out := make([]HybridSearchResult, len(contents))
	for i, c := range contents {
		out[i] = HybridSearchResult{
			Document: VectorDocument{
				ID:           c,
				Content:      c,
				Vector:       []float32{1, 2},
				SparseVector: &SparseVector{Indices: []uint32{0}, Values: []float32{1}},
			},
			Score: 0.9 - float32(i)*0.05,
		}
	}
	return out
}

func contents(results []HybridSearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Document.Content
	}
	return out
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"vector", "database", "the"}, Tokenize("A Vector  database is the DB"))
	assert.Empty(t, Tokenize("a of to"))
	assert.Equal(t, []string{"función"}, Tokenize("función él"))
	// Length is measured in UTF-16 code units.
	assert.Equal(t, []string{"😀😀"}, Tokenize("😀😀 日本"))
	assert.Equal(t, []string{"a😀"}, Tokenize("a😀 😀"))
}

func TestSynthesizeSparse(t *testing.T) {
	sv := SynthesizeSparse("the cat saw the other cat and a dog")

	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, sv.Indices)
	assert.Equal(t, []float32{2, 2, 1, 1, 1, 1}, sv.Values)
}

func TestSynthesizeSparse_Empty(t *testing.T) {
	sv := SynthesizeSparse("a b")

	assert.Empty(t, sv.Indices)
	assert.Empty(t, sv.Values)
}

func TestParseRerankStrategy(t *testing.T) {
	for in, want := range map[string]RerankStrategy{
		"":                 RerankMajorityOverlap,
		"majority_overlap": RerankMajorityOverlap,
		"Lexical_Boost":    RerankLexicalBoost,
		" none ":           RerankNone,
	} {
		got, err := ParseRerankStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRerankStrategy("rrf")
	assert.Error(t, err)
}

func TestSplitHybridRequests(t *testing.T) {
	t.Run("requires dense", func(t *testing.T) {
		_, _, err := splitHybridRequests([]HybridSearchRequest{LexicalRequest("query", 5)})
		assert.ErrorIs(t, err, ErrDenseRequestRequired)
	})

	t.Run("first of each kind wins", func(t *testing.T) {
		dense, lexical, err := splitHybridRequests([]HybridSearchRequest{
			LexicalRequest("first", 5),
			DenseRequest([]float32{1}, 3),
			{AnnsField: AnnsFieldDense, Vector: []float32{2}},
			LexicalRequest("second", 5),
		})
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, dense.Vector)
		assert.Equal(t, "first", lexical.Text)
	})

	t.Run("lexical optional", func(t *testing.T) {
		dense, lexical, err := splitHybridRequests([]HybridSearchRequest{DenseRequest([]float32{1}, 3)})
		require.NoError(t, err)
		assert.NotNil(t, dense)
		assert.Nil(t, lexical)
	})
}

func TestHybridLimit(t *testing.T) {
	dense := &HybridSearchRequest{Limit: 7}
	assert.Equal(t, 3, hybridLimit(HybridSearchOptions{Limit: 3}, dense))
	assert.Equal(t, 7, hybridLimit(HybridSearchOptions{}, dense))
	assert.Equal(t, DefaultTopK, hybridLimit(HybridSearchOptions{}, &HybridSearchRequest{}))
}

func TestDenseVectorName(t *testing.T) {
	assert.Equal(t, "", denseVectorName(&HybridSearchRequest{AnnsField: AnnsFieldVector}))
	assert.Equal(t, AnnsFieldDense, denseVectorName(&HybridSearchRequest{AnnsField: AnnsFieldDense}))
}

func TestRerank_MajorityOverlap(t *testing.T) {
	lexical := LexicalRequest("vector database search", 5)
	results := rerank(RerankMajorityOverlap, &lexical, hits(
		"a vector database with search",
		"a vector index",
		"database search engine",
		"unrelated text",
	))

	assert.Equal(t, []string{"a vector database with search", "database search engine"}, contents(results))
	for _, r := range results {
		assert.Nil(t, r.Document.Vector)
		assert.Nil(t, r.Document.SparseVector)
	}
}

func TestRerank_MajorityOverlapSingleToken(t *testing.T) {
	lexical := LexicalRequest("Qdrant", 5)
	results := rerank(RerankMajorityOverlap, &lexical, hits("uses qdrant", "uses chromem"))

	assert.Equal(t, []string{"uses qdrant"}, contents(results))
}

func TestRerank_MajorityOverlapTwoTokensNeedsOne(t *testing.T) {
	lexical := LexicalRequest("vector search", 5)
	results := rerank(RerankMajorityOverlap, &lexical, hits("vector only", "neither"))

	assert.Equal(t, []string{"vector only"}, contents(results))
}

func TestRerank_ShortTokensKeepEverything(t *testing.T) {
	lexical := LexicalRequest("a of", 5)
	results := rerank(RerankMajorityOverlap, &lexical, hits("one", "two"))

	assert.Equal(t, []string{"one", "two"}, contents(results))
}

func TestRerank_LexicalBoost(t *testing.T) {
	lexical := LexicalRequest("Hybrid Search", 5)
	results := rerank(RerankLexicalBoost, &lexical, hits(
		"dense only",
		"unrelated",
		"supports hybrid search natively",
	))

	require.Len(t, results, 3)
	assert.Equal(t, "supports hybrid search natively", results[0].Document.Content)
	assert.InDelta(t, 0.8+LexicalBoost, results[0].Score, 1e-5)
	assert.Equal(t, []string{"dense only", "unrelated"}, contents(results[1:]))
}

func TestRerank_NoneAndNoLexical(t *testing.T) {
	lexical := LexicalRequest("missing", 5)
	assert.Equal(t, []string{"x", "y"}, contents(rerank(RerankNone, &lexical, hits("x", "y"))))

	results := rerank(RerankMajorityOverlap, nil, hits("x", "y"))
	assert.Equal(t, []string{"x", "y"}, contents(results))
	assert.Nil(t, results[0].Document.Vector)
}
