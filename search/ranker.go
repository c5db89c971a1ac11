package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
)

const (
	defaultScoreFloor       = 0.60
	defaultCumulativeTarget = 2.5
	defaultOversample       = 4
	defaultTopK             = 5
	defaultQueryTimeout     = 10 * time.Second
)

// QueryEmbedder is the slice of the embedding client the ranker needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Ranker answers queries against the vector index with cumulative
// relevance ranking: candidates are taken in score order until the score
// floor, the result cap, or the cumulative relevance budget cuts the
// list off. The budget keeps answers short when a few chunks already
// carry most of the relevance mass.
type Ranker struct {
	index            *index.Index
	embedder         QueryEmbedder
	scoreFloor       float32
	cumulativeTarget float32
	oversample       int
	topK             int
	queryTimeout     time.Duration
	logger           *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithScoreFloor sets the minimum similarity a chunk needs to appear in
// results. Default is 0.60.
func WithScoreFloor(floor float32) Option {
	return func(r *Ranker) error {
		if floor < 0 || floor > 1 {
			return ErrInvalidThreshold
		}
		r.scoreFloor = floor
		return nil
	}
}

// WithCumulativeTarget sets the relevance budget: results stop once
// adding the next chunk would push the sum of scores past the target.
// Default is 2.5.
func WithCumulativeTarget(target float32) Option {
	return func(r *Ranker) error {
		if target <= 0 {
			return ErrInvalidThreshold
		}
		r.cumulativeTarget = target
		return nil
	}
}

// WithOversample sets how many candidates are pulled from the index per
// requested result before the thresholds are applied. Default is 4.
func WithOversample(factor int) Option {
	return func(r *Ranker) error {
		if factor < 1 {
			return ErrInvalidOversample
		}
		r.oversample = factor
		return nil
	}
}

// WithTopK sets the default result cap used when a query asks for 0.
// Default is 5.
func WithTopK(topK int) Option {
	return func(r *Ranker) error {
		if topK < 1 {
			return ErrInvalidOversample
		}
		r.topK = topK
		return nil
	}
}

// WithQueryTimeout bounds the time spent on one query, embedding
// included. Default is 10s.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(r *Ranker) error {
		if timeout <= 0 {
			return ErrInvalidThreshold
		}
		r.queryTimeout = timeout
		return nil
	}
}

// NewRanker creates a new ranker over idx.
func NewRanker(idx *index.Index, embedder QueryEmbedder, opts ...Option) (*Ranker, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Ranker{
		index:            idx,
		embedder:         embedder,
		scoreFloor:       defaultScoreFloor,
		cumulativeTarget: defaultCumulativeTarget,
		oversample:       defaultOversample,
		topK:             defaultTopK,
		queryTimeout:     defaultQueryTimeout,
		logger:           slog.Default().With("component", "ranker"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Search answers a query with up to topK ranked results. A topK of 0
// uses the ranker's default.
func (r *Ranker) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return r.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor answers a query with monitoring. The monitor receives
// callbacks at each ranking decision. A blank query or an empty index
// yields empty results, not an error.
func (r *Ranker) SearchWithMonitor(ctx context.Context, query string, topK int, monitor RankMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	results := []*core.SearchResult{}
	if strings.TrimSpace(query) == "" || r.index.Len() == 0 {
		monitor.Finish(results)
		return results, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	vector = index.Normalize(vector)
	monitor.AfterQueryEmbedding(len(vector))

	hits := r.index.Query(vector, topK*r.oversample)
	monitor.AfterVectorSearch(hits)

	var cumulative float32
	for _, hit := range hits {
		score := clamp01(hit.Score)
		if score < r.scoreFloor {
			monitor.RejectedBelowFloor(hit)
			break
		}
		if len(results) == topK {
			break
		}
		if cumulative+score > r.cumulativeTarget {
			// The crossing chunk is excluded: accepted results never
			// change when the budget cuts the list short.
			monitor.StoppedAtCumulativeTarget(hit, cumulative)
			break
		}
		cumulative += score
		results = append(results, &core.SearchResult{
			ChunkID: hit.ChunkID,
			Text:    hit.Meta.Text,
			Score:   score,
			Rank:    len(results) + 1,
			Metadata: core.ResultMetadata{
				Filename:  hit.Meta.Filename,
				SourceURI: hit.Meta.SourceURI,
			},
		})
		monitor.Accepted(hit, cumulative)
	}

	r.logger.Debug("query ranked", "query", query, "candidates", len(hits), "results", len(results), "cumulative", cumulative)
	monitor.Finish(results)
	return results, nil
}

// clamp01 clamps a similarity to [0, 1]. Negative similarities carry no
// relevance and would otherwise stretch the cumulative budget.
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
