// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
	"github.com/poiesic/docfind/ingestion"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReportInterval: 100,
	}
}

// Stats summarizes a completed reindexing run.
type Stats struct {
	Documents       int
	Chunks          int
	FailedDocuments []core.ID
}

// Reindexer re-embeds every chunk in the index with a new embedder, one
// document at a time. Documents whose embedding fails keep their previous
// vectors and are reported in the stats; the run continues. This is the
// migration path when the embedding model changes, since vectors from
// different models cannot be compared. The replacement is in place, so
// the new model must keep the index's dimensionality; a model with a
// different dimensionality requires re-ingesting into a fresh index.
type Reindexer struct {
	idx      *index.Index
	embedder ingestion.BatchEmbedder
	config   *Config
	progress io.Writer
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(idx *index.Index, embedder ingestion.BatchEmbedder, config *Config, progress io.Writer) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		idx:      idx,
		embedder: embedder,
		config:   config,
		progress: progress,
	}
}

// Run executes the reindexing operation. Every indexed chunk is
// re-embedded from its stored text and swapped in atomically per
// document. Progress is reported to the configured writer.
func (r *Reindexer) Run(ctx context.Context) (*Stats, error) {
	entries := r.idx.Entries()
	if len(entries) == 0 {
		fmt.Fprintf(r.progress, "Index is empty (0 chunks)\n")
		return &Stats{}, nil
	}

	// Group chunks by document, preserving insertion order.
	byDoc := make(map[core.ID][]index.Entry)
	order := make([]core.ID, 0)
	for _, e := range entries {
		if _, seen := byDoc[e.Meta.DocumentID]; !seen {
			order = append(order, e.Meta.DocumentID)
		}
		byDoc[e.Meta.DocumentID] = append(byDoc[e.Meta.DocumentID], e)
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks across %d documents\n",
		len(entries), len(order))

	tracker := NewProgressTracker(r.progress, len(entries), r.config.ReportInterval)
	tracker.Start()

	stats := &Stats{}
	processed := 0

	for _, docID := range order {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		docEntries := byDoc[docID]
		if err := r.reindexDocument(ctx, docID, docEntries); err != nil {
			if !core.IsTransient(err) {
				return stats, err
			}
			fmt.Fprintf(r.progress, "\ndocument %d kept previous vectors: %v\n", docID, err)
			stats.FailedDocuments = append(stats.FailedDocuments, docID)
		} else {
			stats.Documents++
			stats.Chunks += len(docEntries)
		}

		processed += len(docEntries)
		tracker.Update(processed)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return stats, nil
}

// reindexDocument re-embeds one document's chunks and replaces them in
// the index. Any chunk failure fails the whole document so it never holds
// vectors from two models at once.
func (r *Reindexer) reindexDocument(ctx context.Context, docID core.ID, docEntries []index.Entry) error {
	texts := make([]string, len(docEntries))
	for i, e := range docEntries {
		texts[i] = e.Meta.Text
	}

	batch, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(batch.Failed) > 0 {
		return fmt.Errorf("%w: %d of %d chunks failed", core.ErrEmbeddingTransient, len(batch.Failed), len(texts))
	}

	replacement := make([]index.Entry, len(docEntries))
	for i, e := range docEntries {
		replacement[i] = index.Entry{
			ChunkID: e.ChunkID,
			Vector:  batch.Vectors[i],
			Meta:    e.Meta,
		}
	}
	return r.idx.ReplaceDocument(docID, replacement)
}
