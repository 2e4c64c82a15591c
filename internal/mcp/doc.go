// Package mcp exposes codeindex over the Model Context Protocol.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp) on
// the stdio transport and calls the indexer, embedder and vector store
// directly. It registers four tools:
//
//	index_codebase     walk a directory and upsert its chunks
//	search_code        natural-language search, optionally hybrid
//	list_collections   names of the collections in the store
//	clear_index        drop the collection of a directory
//
// Tools that take a path derive the collection name from it the same way the
// CLI does, so an agent and a terminal session share one index.
package mcp
