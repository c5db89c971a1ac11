package search

import (
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
)

// RankMonitor provides hooks to observe the ranking process.
// Implement this interface to track intermediate steps and results during search.
type RankMonitor interface {
	Start(query string)
	AfterQueryEmbedding(dimension int)
	AfterVectorSearch(hits []index.Hit)
	Accepted(hit index.Hit, cumulative float32)
	RejectedBelowFloor(hit index.Hit)
	StoppedAtCumulativeTarget(hit index.Hit, cumulative float32)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of RankMonitor
type noopMonitor struct{}

var _ RankMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                       {}
func (n *noopMonitor) AfterQueryEmbedding(_ int)                            {}
func (n *noopMonitor) AfterVectorSearch(_ []index.Hit)                      {}
func (n *noopMonitor) Accepted(_ index.Hit, _ float32)                      {}
func (n *noopMonitor) RejectedBelowFloor(_ index.Hit)                       {}
func (n *noopMonitor) StoppedAtCumulativeTarget(_ index.Hit, _ float32)     {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                        {}
