// Package ai defines the embedding provider abstraction and the batching
// client that sits between the indexing pipeline and a concrete provider.
//
// The Embedder interface is implemented by provider adapters (see the
// openai subpackage for OpenAI-compatible APIs and the mock subpackage for
// tests). BatchingEmbedder wraps any Embedder with batch-size splitting,
// rate limiting, retry with exponential backoff, and partial-failure
// reporting, and classifies provider errors as transient or fatal.
package ai
