// Package embeddings turns chunk text and queries into dense vectors.
//
// Two providers are available: TEI, a Text Embeddings Inference server
// reached over HTTP, and OpenAI-compatible APIs through go-openai. NewProvider
// selects one from configuration and fills in the model and dimension
// defaults for it.
package embeddings
