package ai_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docfind/ai"
	"github.com/poiesic/docfind/ai/mock"
	"github.com/poiesic/docfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() ai.BatchOption {
	return ai.WithRetryPolicy(ai.RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Retryable:   core.IsTransient,
	})
}

func TestBatchingEmbedderEmbedBatch(t *testing.T) {
	t.Run("embeds all texts in order", func(t *testing.T) {
		embedder, err := ai.NewBatchingEmbedder(mock.NewMockEmbedder(), fastRetry())
		require.NoError(t, err)

		texts := []string{"alpha", "beta", "gamma"}
		result, err := embedder.EmbedBatch(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, result.Vectors, 3)
		assert.Empty(t, result.Failed)

		for i, text := range texts {
			assert.Equal(t, mock.DeterministicVector(text, 384), result.Vectors[i])
		}
	})

	t.Run("splits input into provider batches", func(t *testing.T) {
		var mu sync.Mutex
		var batchSizes []int
		m := mock.NewMockEmbedder()
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			mu.Lock()
			batchSizes = append(batchSizes, len(texts))
			mu.Unlock()
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = mock.DeterministicVector(text, 8)
			}
			return out, nil
		}

		embedder, err := ai.NewBatchingEmbedder(m, ai.WithMaxBatch(2), fastRetry())
		require.NoError(t, err)

		result, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.Empty(t, result.Failed)
		assert.Equal(t, []int{2, 2, 1}, batchSizes)
		assert.Equal(t, 8, embedder.Dimension())
	})

	t.Run("empty input returns empty result", func(t *testing.T) {
		embedder, err := ai.NewBatchingEmbedder(mock.NewMockEmbedder(), fastRetry())
		require.NoError(t, err)

		result, err := embedder.EmbedBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, result.Vectors)
		assert.Empty(t, result.Failed)
	})

	t.Run("transient batch failure marks indices and continues", func(t *testing.T) {
		m := mock.NewMockEmbedder()
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			// Second provider batch always fails.
			if texts[0] == "c" {
				return nil, errors.New("connection refused")
			}
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = mock.DeterministicVector(text, 8)
			}
			return out, nil
		}

		embedder, err := ai.NewBatchingEmbedder(m, ai.WithMaxBatch(2), fastRetry())
		require.NoError(t, err)

		result, err := embedder.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3}, result.Failed)
		assert.Nil(t, result.Vectors[2])
		assert.Nil(t, result.Vectors[3])
		assert.NotNil(t, result.Vectors[0])
		assert.NotNil(t, result.Vectors[4])
		assert.Equal(t, 8, result.Dimension())
	})

	t.Run("fatal error aborts whole call", func(t *testing.T) {
		m := mock.NewMockEmbedder()
		calls := 0
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			return nil, errors.New("invalid api key")
		}

		embedder, err := ai.NewBatchingEmbedder(m, ai.WithMaxBatch(1), fastRetry())
		require.NoError(t, err)

		_, err = embedder.EmbedBatch(context.Background(), []string{"a", "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("dimension mismatch aborts", func(t *testing.T) {
		m := mock.NewMockEmbedder()
		dims := []int{8, 16}
		call := 0
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			dim := dims[call]
			call++
			out := make([][]float32, len(texts))
			for i, text := range texts {
				out[i] = mock.DeterministicVector(text, dim)
			}
			return out, nil
		}

		embedder, err := ai.NewBatchingEmbedder(m, ai.WithMaxBatch(1), fastRetry())
		require.NoError(t, err)

		_, err = embedder.EmbedBatch(context.Background(), []string{"a", "b"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
	})

	t.Run("short provider response is rejected", func(t *testing.T) {
		m := mock.NewMockEmbedder()
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{mock.DeterministicVector(texts[0], 8)}, nil
		}

		embedder, err := ai.NewBatchingEmbedder(m, ai.WithMaxBatch(3), fastRetry())
		require.NoError(t, err)

		_, err = embedder.EmbedBatch(context.Background(), []string{"a", "b", "c"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
	})

	t.Run("requires an inner embedder", func(t *testing.T) {
		_, err := ai.NewBatchingEmbedder(nil)
		assert.ErrorIs(t, err, ai.ErrEmbedderRequired)
	})
}

func TestBatchingEmbedderEmbedQuery(t *testing.T) {
	t.Run("returns single vector", func(t *testing.T) {
		embedder, err := ai.NewBatchingEmbedder(mock.NewMockEmbedder(), fastRetry())
		require.NoError(t, err)

		vec, err := embedder.EmbedQuery(context.Background(), "what is a raft log")
		require.NoError(t, err)
		assert.Equal(t, mock.DeterministicVector("what is a raft log", 384), vec)
	})

	t.Run("propagates failure", func(t *testing.T) {
		m := mock.NewMockEmbedder()
		m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, fmt.Errorf("service unavailable")
		}

		embedder, err := ai.NewBatchingEmbedder(m, fastRetry())
		require.NoError(t, err)

		_, err = embedder.EmbedQuery(context.Background(), "query")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("applies config values", func(t *testing.T) {
		cfg := ai.NewConfig(
			ai.WithEmbeddingHost("http://localhost:11434"),
			ai.WithMaxBatchSize(4),
			ai.WithRequestsPerSecond(0),
		)
		embedder, err := ai.FromConfig(mock.NewMockEmbedder(), cfg, fastRetry())
		require.NoError(t, err)
		require.NotNil(t, embedder)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithEmbeddingModel(""))
		_, err := ai.FromConfig(mock.NewMockEmbedder(), cfg)
		assert.Error(t, err)
	})
}
