package vectorstore

import (
	"fmt"
	"sort"
	"strings"
)

// RerankStrategy selects how the lexical request of a hybrid query is fused
// with dense results.
type RerankStrategy string

const (
	// RerankMajorityOverlap keeps dense results whose content contains at
	// least half of the distinct query tokens. It is the default.
	RerankMajorityOverlap RerankStrategy = "majority_overlap"

	// RerankLexicalBoost adds LexicalBoost to results whose content contains
	// the whole query and re-sorts by score.
	RerankLexicalBoost RerankStrategy = "lexical_boost"

	// RerankNone returns dense results unchanged.
	RerankNone RerankStrategy = "none"
)

// LexicalBoost is the score increment applied by RerankLexicalBoost.
const LexicalBoost float32 = 0.2

// ParseRerankStrategy parses a strategy name. The empty string selects the default.
func ParseRerankStrategy(s string) (RerankStrategy, error) {
	switch RerankStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RerankMajorityOverlap:
		return RerankMajorityOverlap, nil
	case RerankLexicalBoost:
		return RerankLexicalBoost, nil
	case RerankNone:
		return RerankNone, nil
	default:
		return "", fmt.Errorf("unknown rerank strategy %q", s)
	}
}

// splitHybridRequests picks the dense request and, if present, the lexical one.
func splitHybridRequests(requests []HybridSearchRequest) (dense, lexical *HybridSearchRequest, err error) {
	for i := range requests {
		r := &requests[i]
		switch r.AnnsField {
		case AnnsFieldVector, AnnsFieldDense:
			if dense == nil {
				dense = r
			}
		case AnnsFieldSparse:
			if lexical == nil {
				lexical = r
			}
		}
	}
	if dense == nil {
		return nil, nil, ErrDenseRequestRequired
	}
	return dense, lexical, nil
}

// hybridLimit resolves the dense query limit: options first, then the dense
// request, then DefaultTopK.
func hybridLimit(opts HybridSearchOptions, dense *HybridSearchRequest) int {
	switch {
	case opts.Limit > 0:
		return opts.Limit
	case dense.Limit > 0:
		return dense.Limit
	default:
		return DefaultTopK
	}
}

// denseVectorName is the named vector a dense request targets, or "" for the
// default unnamed vector.
func denseVectorName(dense *HybridSearchRequest) string {
	if dense.AnnsField == AnnsFieldDense {
		return AnnsFieldDense
	}
	return ""
}

// rerank fuses dense results with the lexical query. Vectors are cleared on
// every returned document.
func rerank(strategy RerankStrategy, lexical *HybridSearchRequest, results []HybridSearchResult) []HybridSearchResult {
	for i := range results {
		results[i].Document.Vector = nil
		results[i].Document.SparseVector = nil
	}
	if lexical == nil || lexical.Text == "" {
		return results
	}

	switch strategy {
	case RerankNone:
		return results
	case RerankLexicalBoost:
		query := strings.ToLower(strings.TrimSpace(lexical.Text))
		for i := range results {
			if strings.Contains(strings.ToLower(results[i].Document.Content), query) {
				results[i].Score += LexicalBoost
			}
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
		return results
	default:
		tokens := distinct(Tokenize(lexical.Text))
		kept := results[:0]
		for _, r := range results {
			if majorityOverlap(tokens, r.Document.Content) {
				kept = append(kept, r)
			}
		}
		return kept
	}
}

// majorityOverlap reports whether content contains a single query token, or
// at least ceil(n/2) of n distinct tokens. An empty token list matches.
func majorityOverlap(tokens []string, content string) bool {
	content = strings.ToLower(content)
	if len(tokens) == 1 {
		return strings.Contains(content, tokens[0])
	}
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(content, tok) {
			matched++
		}
	}
	return matched >= (len(tokens)+1)/2
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// toHybridResults converts dense results before reranking.
func toHybridResults(results []VectorSearchResult) []HybridSearchResult {
	out := make([]HybridSearchResult, len(results))
	for i, r := range results {
		out[i] = HybridSearchResult{Document: r.Document, Score: r.Score}
	}
	return out
}
