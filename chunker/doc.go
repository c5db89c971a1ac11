// Package chunker splits raw document text into overlapping passages
// suitable for embedding.
//
// Passages have a fixed target size in characters with a configurable
// overlap, so a concept spanning a chunk boundary remains retrievable
// from at least one chunk. Source code is split on line boundaries to
// avoid cutting statements in half.
package chunker
