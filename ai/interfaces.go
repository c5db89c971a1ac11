package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchResult reports the outcome of embedding a sequence of texts.
// Vectors holds one entry per input text, in input order; entries at
// failed indices are nil. Failed lists the indices whose embedding
// failed after the retry budget was exhausted.
type BatchResult struct {
	Vectors [][]float32
	Failed  []int
}

// Dimension returns the dimensionality of the successful embeddings,
// or 0 if every text failed.
func (r *BatchResult) Dimension() int {
	for _, v := range r.Vectors {
		if len(v) > 0 {
			return len(v)
		}
	}
	return 0
}
