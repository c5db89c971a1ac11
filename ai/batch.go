package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/poiesic/docfind/core"
)

// BatchingEmbedder wraps an Embedder with provider batch-size splitting,
// rate limiting, retry with backoff, and partial-failure reporting.
// All embeddings produced by one instance share a single dimensionality;
// the client fails fast if the provider starts returning vectors of a
// different length.
type BatchingEmbedder struct {
	inner        Embedder
	maxBatchSize int
	policy       RetryPolicy
	limiter      *rate.Limiter
	logger       *slog.Logger

	mu        sync.Mutex
	dimension int // 0 until the first successful embedding pins it
}

// BatchOption configures a BatchingEmbedder.
type BatchOption func(*BatchingEmbedder) error

// WithMaxBatch sets the maximum number of texts per provider call.
// Default is 32.
func WithMaxBatch(size int) BatchOption {
	return func(b *BatchingEmbedder) error {
		if size <= 0 {
			return fmt.Errorf("max batch size must be greater than 0")
		}
		b.maxBatchSize = size
		return nil
	}
}

// WithRetryPolicy sets the retry policy for transient provider failures.
// Default is DefaultRetryPolicy().
func WithRetryPolicy(policy RetryPolicy) BatchOption {
	return func(b *BatchingEmbedder) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.policy = policy
		return nil
	}
}

// WithRateLimit limits provider calls to rps requests per second.
// Zero disables limiting.
func WithRateLimit(rps float64) BatchOption {
	return func(b *BatchingEmbedder) error {
		if rps < 0 {
			return fmt.Errorf("rate limit cannot be negative")
		}
		if rps == 0 {
			b.limiter = nil
			return nil
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		return nil
	}
}

// WithBatchLogger sets a custom logger.
// Default is slog.Default().
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchingEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBatchingEmbedder creates a batching embedder around inner.
func NewBatchingEmbedder(inner Embedder, opts ...BatchOption) (*BatchingEmbedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}

	b := &BatchingEmbedder{
		inner:        inner,
		maxBatchSize: 32,
		policy:       DefaultRetryPolicy(),
		logger:       slog.Default().With("component", "batching-embedder"),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// FromConfig creates a batching embedder configured from cfg.
func FromConfig(inner Embedder, cfg *Config, opts ...BatchOption) (*BatchingEmbedder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := []BatchOption{
		WithMaxBatch(cfg.MaxBatchSize),
		WithRateLimit(cfg.RequestsPerSecond),
	}
	return NewBatchingEmbedder(inner, append(base, opts...)...)
}

// EmbedBatch embeds texts, splitting the input into provider-sized batches
// and preserving input order on reassembly. Transient failures are retried
// per batch; once the retry budget for a batch is exhausted, its indices
// are reported in BatchResult.Failed and the remaining batches proceed.
// Fatal provider errors abort the whole call.
func (b *BatchingEmbedder) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	result := &BatchResult{
		Vectors: make([][]float32, len(texts)),
	}
	if len(texts) == 0 {
		return result, nil
	}

	for start := 0; start < len(texts); start += b.maxBatchSize {
		end := start + b.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := b.embedOnce(ctx, batch)
		if err != nil {
			if !core.IsTransient(err) || ctx.Err() != nil {
				return nil, err
			}
			// Retries exhausted: report the batch as failed, keep going.
			b.logger.Warn("embedding batch failed after retries", "start", start, "count", len(batch), "err", err)
			for i := start; i < end; i++ {
				result.Failed = append(result.Failed, i)
			}
			continue
		}

		for i, vec := range vectors {
			result.Vectors[start+i] = vec
		}
	}

	return result, nil
}

// EmbedQuery embeds a single query text. Unlike EmbedBatch there is no
// partial result: a query either has a vector or the call fails.
func (b *BatchingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.embedOnce(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the pinned embedding dimensionality, or 0 if no
// embedding has succeeded yet.
func (b *BatchingEmbedder) Dimension() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dimension
}

// embedOnce embeds one provider-sized batch under the retry policy and
// validates the response shape.
func (b *BatchingEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := b.policy.Do(ctx, func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return classify(err)
			}
		}
		out, err := b.inner.EmbedTexts(ctx, batch)
		if err != nil {
			return classify(err)
		}
		if len(out) != len(batch) {
			return classify(fmt.Errorf("invalid request: embedding count mismatch, expected %d got %d", len(batch), len(out)))
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, vec := range vectors {
		if err := b.checkDimension(len(vec)); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// checkDimension pins the dimensionality on first use and rejects any
// later deviation as fatal.
func (b *BatchingEmbedder) checkDimension(dim int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dim == 0 {
		return classify(fmt.Errorf("invalid request: provider returned empty vector"))
	}
	if b.dimension == 0 {
		b.dimension = dim
		return nil
	}
	if dim != b.dimension {
		return fmt.Errorf("%w: got %d, index uses %d", ErrDimensionMismatch, dim, b.dimension)
	}
	return nil
}
