package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDo(t *testing.T) {
	fastPolicy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Retryable:   core.IsTransient,
	}

	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(context.Background(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("%w: connection reset", core.ErrEmbeddingTransient)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when attempts exhausted", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(context.Background(), func() error {
			calls++
			return fmt.Errorf("%w: timeout", core.ErrEmbeddingTransient)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry fatal errors", func(t *testing.T) {
		calls := 0
		err := fastPolicy.Do(context.Background(), func() error {
			calls++
			return fmt.Errorf("%w: invalid api key", core.ErrEmbeddingFatal)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := fastPolicy.Do(ctx, func() error {
			return errors.New("should not run")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		bad := RetryPolicy{MaxAttempts: 0}
		err := bad.Do(context.Background(), func() error { return nil })
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})
}

func TestClassify(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classify(nil))
	})

	t.Run("auth errors are fatal", func(t *testing.T) {
		err := classify(errors.New("401 Unauthorized"))
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
	})

	t.Run("quota errors are fatal", func(t *testing.T) {
		err := classify(errors.New("monthly quota exceeded"))
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)
	})

	t.Run("unknown errors default to transient", func(t *testing.T) {
		err := classify(errors.New("connection refused"))
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)
		assert.True(t, core.IsTransient(err))
	})

	t.Run("status codes match only as whole numbers", func(t *testing.T) {
		err := classify(errors.New("received status code 403"))
		assert.ErrorIs(t, err, core.ErrEmbeddingFatal)

		err = classify(errors.New("dial tcp 127.0.0.1:8400: connection refused"))
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)

		err = classify(errors.New("unexpected EOF after 4010 bytes"))
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)
	})

	t.Run("context errors are transient", func(t *testing.T) {
		err := classify(context.DeadlineExceeded)
		assert.ErrorIs(t, err, core.ErrEmbeddingTransient)
	})

	t.Run("already classified errors pass through", func(t *testing.T) {
		orig := fmt.Errorf("%w: boom", core.ErrEmbeddingFatal)
		assert.Equal(t, orig, classify(orig))
	})
}
