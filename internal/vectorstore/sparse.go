package vectorstore

import (
	"strings"
	"unicode/utf16"
)

// SparseVector is a term-frequency signal as parallel index/value arrays.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Tokenize splits text on whitespace, lower-cases it and drops tokens of two
// UTF-16 code units or fewer.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		if utf16Len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// utf16Len counts s in UTF-16 code units; a character outside the Basic
// Multilingual Plane counts twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// SynthesizeSparse builds a per-document sparse vector from content. Each
// distinct token gets the index of its first occurrence among distinct tokens
// and its term frequency as the value. There is no corpus-wide vocabulary, so
// this is only an approximate lexical signal.
func SynthesizeSparse(content string) SparseVector {
	var order []string
	freq := make(map[string]int)
	for _, tok := range Tokenize(content) {
		if _, seen := freq[tok]; !seen {
			order = append(order, tok)
		}
		freq[tok]++
	}
	sv := SparseVector{
		Indices: make([]uint32, len(order)),
		Values:  make([]float32, len(order)),
	}
	for i, tok := range order {
		sv.Indices[i] = uint32(i)
		sv.Values[i] = float32(freq[tok])
	}
	return sv
}
