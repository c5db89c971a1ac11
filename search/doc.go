// Package search ranks vector index candidates into query answers.
//
// Ranking is multi-stage: the query is embedded and normalized, an
// oversampled candidate list is pulled from the index in score order, and
// the list is cut by three independent conditions: a per-chunk score
// floor, the requested result cap, and a cumulative relevance budget.
// The budget excludes the chunk that would cross it, so the accepted
// prefix is stable as thresholds tighten.
package search
