package reindex_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/docfind/ai"
	"github.com/poiesic/docfind/ai/mock"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
	"github.com/poiesic/docfind/reindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	salt string
	fail map[string]bool
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) (*ai.BatchResult, error) {
	result := &ai.BatchResult{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		if s.fail[text] {
			result.Failed = append(result.Failed, i)
			continue
		}
		result.Vectors[i] = mock.DeterministicVector(s.salt+text, 8)
	}
	return result, nil
}

func seededIndex(t *testing.T) *index.Index {
	t.Helper()
	idx := index.New()
	for doc := 1; doc <= 2; doc++ {
		for chunk := 0; chunk < 3; chunk++ {
			text := fmt.Sprintf("doc %d chunk %d", doc, chunk)
			require.NoError(t, idx.Insert(index.Entry{
				ChunkID: core.ChunkIDFrom(core.ID(doc), chunk*100, 100),
				Vector:  mock.DeterministicVector("old:"+text, 8),
				Meta: core.ChunkMeta{
					DocumentID: core.ID(doc),
					Text:       text,
					Filename:   fmt.Sprintf("doc%d.txt", doc),
				},
			}))
		}
	}
	return idx
}

func TestReindexerRun(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces every vector from stored text", func(t *testing.T) {
		idx := seededIndex(t)
		var out bytes.Buffer
		r := reindex.NewReindexer(idx, &stubEmbedder{salt: "new:"}, nil, &out)

		stats, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Documents)
		assert.Equal(t, 6, stats.Chunks)
		assert.Empty(t, stats.FailedDocuments)
		assert.Equal(t, 6, idx.Len())
		require.NoError(t, idx.CheckConsistency())

		// Chunks now match the new model's vectors.
		q := index.Normalize(mock.DeterministicVector("new:doc 1 chunk 0", 8))
		hits := idx.Query(q, 1)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc 1 chunk 0", hits[0].Meta.Text)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)

		assert.Contains(t, out.String(), "Reindex complete")
	})

	t.Run("failed document keeps previous vectors", func(t *testing.T) {
		idx := seededIndex(t)
		embedder := &stubEmbedder{salt: "new:", fail: map[string]bool{"doc 2 chunk 1": true}}
		r := reindex.NewReindexer(idx, embedder, nil, nil)

		stats, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Documents)
		assert.Equal(t, []core.ID{2}, stats.FailedDocuments)
		assert.Equal(t, 6, idx.Len())

		// Document 2 still answers to its old vectors.
		q := index.Normalize(mock.DeterministicVector("old:doc 2 chunk 1", 8))
		hits := idx.Query(q, 1)
		require.Len(t, hits, 1)
		assert.Equal(t, "doc 2 chunk 1", hits[0].Meta.Text)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	})

	t.Run("empty index is a no-op", func(t *testing.T) {
		var out bytes.Buffer
		r := reindex.NewReindexer(index.New(), &stubEmbedder{}, nil, &out)

		stats, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Documents)
		assert.True(t, strings.Contains(out.String(), "empty"))
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		idx := seededIndex(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		r := reindex.NewReindexer(idx, &stubEmbedder{salt: "new:"}, nil, nil)
		_, err := r.Run(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
