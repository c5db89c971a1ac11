package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docfind/ai"
	"github.com/poiesic/docfind/ai/mock"
	"github.com/poiesic/docfind/chunker"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
	"github.com/poiesic/docfind/ingestion"
	"github.com/poiesic/docfind/storage"
	storagebadger "github.com/poiesic/docfind/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	idx      *index.Index
	pipeline *ingestion.Pipeline
	docs     storage.DocumentRepository
}

// fakeEmbedder lets tests control the batch result directly.
type fakeEmbedder struct {
	fn func(ctx context.Context, texts []string) (*ai.BatchResult, error)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) (*ai.BatchResult, error) {
	return f.fn(ctx, texts)
}

// fakeExtractor returns canned text for any PDF bytes.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return f.text, f.err
}

func realEmbedder(t *testing.T) *ai.BatchingEmbedder {
	t.Helper()
	embedder, err := ai.NewBatchingEmbedder(mock.NewMockEmbedder(), ai.WithRetryPolicy(ai.RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Retryable:   core.IsTransient,
	}))
	require.NoError(t, err)
	return embedder
}

func newFixture(t *testing.T, embedder ingestion.BatchEmbedder, opts ...ingestion.Option) *fixture {
	t.Helper()
	docs, _, backend, err := storagebadger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() {
		docs.Close()
		backend.Close()
	})

	idx := index.New()
	small, err := chunker.NewChunker(chunker.WithSize(50), chunker.WithOverlap(10))
	require.NoError(t, err)

	pipeline, err := ingestion.NewPipeline(idx, embedder, docs,
		append([]ingestion.Option{ingestion.WithChunker(small)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &fixture{idx: idx, pipeline: pipeline, docs: docs}
}

func textDocument(name string) core.Document {
	return core.Document{
		Name:        name,
		SourceURI:   "file:///" + name,
		ContentType: core.ContentTypeText,
	}
}

func TestPipelineIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes a small document", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))

		result, err := f.pipeline.Ingest(ctx, textDocument("note.txt"), []byte("a short note"))
		require.NoError(t, err)
		assert.Equal(t, core.IngestStateIndexed, result.State)
		assert.Equal(t, 1, result.ChunksIndexed)
		assert.Empty(t, result.FailedChunks)
		assert.Equal(t, 1, f.idx.Len())

		doc, err := f.docs.GetDocument(ctx, result.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, 1, doc.ChunkCount)
	})

	t.Run("derives document id from name", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))

		result, err := f.pipeline.Ingest(ctx, textDocument("guide.md"), []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, core.IDFromContent("guide.md"), result.DocumentID)
	})

	t.Run("reingest replaces chunks instead of accumulating", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))
		long := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10)

		first, err := f.pipeline.Ingest(ctx, textDocument("fox.txt"), []byte(long))
		require.NoError(t, err)
		require.Greater(t, first.ChunksIndexed, 1)
		assert.Equal(t, first.ChunksIndexed, f.idx.Len())

		second, err := f.pipeline.Ingest(ctx, textDocument("fox.txt"), []byte("now much shorter"))
		require.NoError(t, err)
		assert.Equal(t, 1, second.ChunksIndexed)
		assert.Equal(t, 1, f.idx.Len())
		require.NoError(t, f.idx.CheckConsistency())
	})

	t.Run("empty document is a no-op", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))

		result, err := f.pipeline.Ingest(ctx, textDocument("empty.txt"), []byte("   \n  "))
		require.NoError(t, err)
		assert.Equal(t, core.IngestStateNoOp, result.State)
		assert.Equal(t, 0, f.idx.Len())
	})

	t.Run("rejects oversized documents", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t), ingestion.WithMaxDocumentSize(16))

		_, err := f.pipeline.Ingest(ctx, textDocument("big.txt"), []byte(strings.Repeat("x", 17)))
		assert.ErrorIs(t, err, ingestion.ErrDocumentTooLarge)
	})

	t.Run("rejects invalid documents", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))

		_, err := f.pipeline.Ingest(ctx, core.Document{ContentType: core.ContentTypeText}, []byte("x"))
		assert.ErrorIs(t, err, core.ErrInvalidDocument)
	})
}

func TestPipelinePartialFailure(t *testing.T) {
	ctx := context.Background()
	long := strings.Repeat("some searchable prose that fills several chunks. ", 10)

	t.Run("failed chunks are skipped and reported", func(t *testing.T) {
		embedder := &fakeEmbedder{fn: func(ctx context.Context, texts []string) (*ai.BatchResult, error) {
			result := &ai.BatchResult{Vectors: make([][]float32, len(texts))}
			for i, text := range texts {
				if i == 2 || i == 4 {
					result.Failed = append(result.Failed, i)
					continue
				}
				result.Vectors[i] = mock.DeterministicVector(text, 8)
			}
			return result, nil
		}}
		f := newFixture(t, embedder)

		result, err := f.pipeline.Ingest(ctx, textDocument("partial.txt"), []byte(long))
		require.NoError(t, err)
		assert.Equal(t, core.IngestStatePartiallyIndexed, result.State)
		assert.Equal(t, []int{2, 4}, result.FailedChunks)
		assert.Equal(t, result.ChunksIndexed, f.idx.Len())
	})

	t.Run("total failure keeps the previous version", func(t *testing.T) {
		failing := &fakeEmbedder{fn: func(ctx context.Context, texts []string) (*ai.BatchResult, error) {
			result := &ai.BatchResult{Vectors: make([][]float32, len(texts))}
			for i := range texts {
				result.Failed = append(result.Failed, i)
			}
			return result, nil
		}}
		f := newFixture(t, realEmbedder(t))

		first, err := f.pipeline.Ingest(ctx, textDocument("keep.txt"), []byte("original content"))
		require.NoError(t, err)
		require.Equal(t, 1, first.ChunksIndexed)

		// Swap in a second pipeline sharing the index but always failing.
		broken, err := ingestion.NewPipeline(f.idx, failing, nil)
		require.NoError(t, err)
		defer broken.Release()

		result, err := broken.Ingest(ctx, textDocument("keep.txt"), []byte("replacement content"))
		require.Error(t, err)
		assert.Equal(t, core.IngestStateFailed, result.State)
		assert.Equal(t, 1, f.idx.Len())
	})

	t.Run("fatal embedding error fails the ingestion", func(t *testing.T) {
		fatal := &fakeEmbedder{fn: func(ctx context.Context, texts []string) (*ai.BatchResult, error) {
			return nil, fmt.Errorf("%w: invalid api key", core.ErrEmbeddingFatal)
		}}
		f := newFixture(t, fatal)

		result, err := f.pipeline.Ingest(ctx, textDocument("doomed.txt"), []byte("text"))
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
		assert.Equal(t, core.IngestStateFailed, result.State)
	})
}

func TestPipelinePDF(t *testing.T) {
	ctx := context.Background()

	pdfDocument := core.Document{
		Name:        "paper.pdf",
		SourceURI:   "file:///paper.pdf",
		ContentType: core.ContentTypePDF,
	}

	t.Run("extracts text before chunking", func(t *testing.T) {
		extractor := &fakeExtractor{text: "extracted pdf prose"}
		f := newFixture(t, realEmbedder(t), ingestion.WithPDFExtractor(extractor))

		result, err := f.pipeline.Ingest(ctx, pdfDocument, []byte{0x25, 0x50, 0x44, 0x46})
		require.NoError(t, err)
		assert.Equal(t, core.IngestStateIndexed, result.State)

		hits := f.idx.Query(index.Normalize(mock.DeterministicVector("extracted pdf prose", 384)), 1)
		require.Len(t, hits, 1)
		assert.Equal(t, "extracted pdf prose", hits[0].Meta.Text)
	})

	t.Run("fails without an extractor", func(t *testing.T) {
		f := newFixture(t, realEmbedder(t))
		_, err := f.pipeline.Ingest(ctx, pdfDocument, []byte{0x25})
		assert.ErrorIs(t, err, ingestion.ErrExtractorRequired)
	})

	t.Run("extractor failure is a chunking error", func(t *testing.T) {
		extractor := &fakeExtractor{err: errors.New("encrypted file")}
		f := newFixture(t, realEmbedder(t), ingestion.WithPDFExtractor(extractor))

		_, err := f.pipeline.Ingest(ctx, pdfDocument, []byte{0x25})
		assert.ErrorIs(t, err, core.ErrChunking)
	})
}

func TestPipelineRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, realEmbedder(t))

	result, err := f.pipeline.Ingest(ctx, textDocument("gone.txt"), []byte("soon removed"))
	require.NoError(t, err)

	removed, err := f.pipeline.Remove(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, f.idx.Len())

	_, err = f.docs.GetDocument(ctx, result.DocumentID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Removing again is not an error.
	removed, err = f.pipeline.Remove(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestPipelineIngestAsync(t *testing.T) {
	f := newFixture(t, realEmbedder(t))

	var wg sync.WaitGroup
	wg.Add(1)
	var got *core.IngestResult
	err := f.pipeline.IngestAsync(textDocument("async.txt"), []byte("async content"), func(result *core.IngestResult, err error) {
		defer wg.Done()
		require.NoError(t, err)
		got = result
	})
	require.NoError(t, err)
	wg.Wait()

	require.NotNil(t, got)
	assert.Equal(t, core.IngestStateIndexed, got.State)
	assert.Equal(t, 1, f.idx.Len())
}
