// Package index provides the in-memory vector index over document chunks.
//
// The index is a flat store scored by exhaustive dot product, which for
// the unit vectors it keeps is cosine similarity. It supports atomic
// whole-document replacement so re-ingesting a changed document never
// exposes a partially updated chunk set to concurrent queries, and it can
// serialize its full state to a snapshot and restore it on startup.
package index
