// Package indexer walks a source tree, splits files into line windows and
// writes their embeddings to a vector store.
//
// Walk applies include/exclude globs (doublestar syntax, so "**" crosses
// directories), prunes well-known dependency and build directories, and skips
// files that are too large, contain NUL bytes or are not valid UTF-8.
//
// Each chunk becomes one VectorDocument whose ID is
// "relative/path.go:startLine-endLine", so re-indexing a file overwrites its
// previous chunks as long as the windows line up.
package indexer
