// Package reindex migrates the vector index to a new embedding model by
// re-embedding every chunk from its stored text. Replacement happens per
// document, so a failure mid-run leaves each document wholly on the old
// or wholly on the new model, never mixed.
package reindex
