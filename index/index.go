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


package index

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/poiesic/docfind/core"
)

// Entry is one chunk held by the index: its identity, its embedding
// vector, and the metadata returned alongside search hits.
type Entry struct {
	ChunkID core.ID
	Vector  []float32
	Meta    core.ChunkMeta
}

// Hit is one scored match from a similarity query.
type Hit struct {
	ChunkID core.ID
	Score   float32
	Meta    core.ChunkMeta
}

// Index is an in-memory vector index over document chunks. Vectors are
// normalized on insert, so similarity is a plain dot product. All methods
// are safe for concurrent use; writes scoped to one document happen
// atomically with respect to queries.
type Index struct {
	mu        sync.RWMutex
	dimension int
	nextSeq   uint64

	vectors map[core.ID][]float32
	meta    map[core.ID]core.ChunkMeta
	seqs    map[core.ID]uint64
	byDoc   map[core.ID]map[core.ID]struct{}

	logger *slog.Logger
}

// New creates an empty index. The dimensionality is pinned by the first
// inserted vector (or restored snapshot).
func New() *Index {
	return &Index{
		vectors: make(map[core.ID][]float32),
		meta:    make(map[core.ID]core.ChunkMeta),
		seqs:    make(map[core.ID]uint64),
		byDoc:   make(map[core.ID]map[core.ID]struct{}),
		logger:  slog.Default().With("component", "vector-index"),
	}
}

// Insert adds entries to the index, normalizing each vector to unit
// length. Re-inserting an existing chunk ID replaces its vector and
// metadata but keeps its original insertion order. The whole call is one
// atomic write: queries see either none or all of the entries.
func (idx *Index) Insert(entries ...Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insertLocked(entries)
}

// insertLocked validates then applies entries. Validation runs fully
// before any mutation so a bad entry cannot leave a partial write behind.
func (idx *Index) insertLocked(entries []Entry) error {
	dim := idx.dimension
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrEmptyVector, e.ChunkID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d, index uses %d", ErrDimensionMismatch, e.ChunkID, len(e.Vector), dim)
		}
	}

	idx.dimension = dim
	for _, e := range entries {
		if _, exists := idx.vectors[e.ChunkID]; !exists {
			idx.nextSeq++
			idx.seqs[e.ChunkID] = idx.nextSeq
		}
		idx.vectors[e.ChunkID] = Normalize(e.Vector)
		idx.meta[e.ChunkID] = e.Meta

		chunks, ok := idx.byDoc[e.Meta.DocumentID]
		if !ok {
			chunks = make(map[core.ID]struct{})
			idx.byDoc[e.Meta.DocumentID] = chunks
		}
		chunks[e.ChunkID] = struct{}{}
	}
	return nil
}

// RemoveDocument removes every chunk belonging to documentID and returns
// how many chunks were removed.
func (idx *Index) RemoveDocument(documentID core.ID) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeDocumentLocked(documentID)
}

func (idx *Index) removeDocumentLocked(documentID core.ID) int {
	chunks, ok := idx.byDoc[documentID]
	if !ok {
		return 0
	}
	for chunkID := range chunks {
		delete(idx.vectors, chunkID)
		delete(idx.meta, chunkID)
		delete(idx.seqs, chunkID)
	}
	delete(idx.byDoc, documentID)
	return len(chunks)
}

// ReplaceDocument atomically swaps all chunks of documentID for entries.
// Queries running concurrently see either the old chunk set or the new
// one, never a mix and never an empty gap. Entries must all belong to
// documentID.
func (idx *Index) ReplaceDocument(documentID core.ID, entries []Entry) error {
	for _, e := range entries {
		if e.Meta.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %d belongs to document %d, not %d",
				core.ErrIndexConsistency, e.ChunkID, e.Meta.DocumentID, documentID)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	removed := idx.removeDocumentLocked(documentID)
	if err := idx.insertLocked(entries); err != nil {
		idx.logger.Error("document replacement failed after removal", "documentID", documentID, "removed", removed, "err", err)
		return err
	}
	return nil
}

// Query scores every entry against vector and returns the top limit hits
// ordered by descending score. Equal scores are ordered by insertion
// order, oldest first, so repeated queries are deterministic. The query
// vector is used as given; normalize it first for cosine similarity.
func (idx *Index) Query(vector []float32, limit int) []Hit {
	if limit <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return nil
	}
	if len(vector) != idx.dimension {
		idx.logger.Debug("query vector dimension does not match index",
			"query", len(vector), "index", idx.dimension)
		return nil
	}

	hits := make([]Hit, 0, len(idx.vectors))
	for chunkID, v := range idx.vectors {
		hits = append(hits, Hit{
			ChunkID: chunkID,
			Score:   Dot(vector, v),
			Meta:    idx.meta[chunkID],
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idx.seqs[hits[i].ChunkID] < idx.seqs[hits[j].ChunkID]
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Entries returns a copy of every indexed entry in insertion order.
// Vectors are the normalized ones the index holds.
func (idx *Index) Entries() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := make([]Entry, 0, len(idx.vectors))
	for chunkID, v := range idx.vectors {
		entries = append(entries, Entry{
			ChunkID: chunkID,
			Vector:  v,
			Meta:    idx.meta[chunkID],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return idx.seqs[entries[i].ChunkID] < idx.seqs[entries[j].ChunkID]
	})
	return entries
}

// Meta returns the metadata stored for chunkID.
func (idx *Index) Meta(chunkID core.ID) (core.ChunkMeta, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.meta[chunkID]
	return m, ok
}

// Len returns the number of chunks currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Documents returns the number of distinct documents with indexed chunks.
func (idx *Index) Documents() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byDoc)
}

// Dimension returns the pinned vector dimensionality, or 0 while empty.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// CheckConsistency verifies the internal maps agree: every vector has
// metadata and a sequence number, and the per-document sets cover exactly
// the indexed chunks.
func (idx *Index) CheckConsistency() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for chunkID := range idx.vectors {
		if _, ok := idx.meta[chunkID]; !ok {
			return fmt.Errorf("%w: chunk %d has a vector but no metadata", core.ErrIndexConsistency, chunkID)
		}
		if _, ok := idx.seqs[chunkID]; !ok {
			return fmt.Errorf("%w: chunk %d has a vector but no sequence", core.ErrIndexConsistency, chunkID)
		}
	}

	covered := 0
	for docID, chunks := range idx.byDoc {
		for chunkID := range chunks {
			m, ok := idx.meta[chunkID]
			if !ok {
				return fmt.Errorf("%w: document %d references missing chunk %d", core.ErrIndexConsistency, docID, chunkID)
			}
			if m.DocumentID != docID {
				return fmt.Errorf("%w: chunk %d filed under document %d but belongs to %d", core.ErrIndexConsistency, chunkID, docID, m.DocumentID)
			}
			covered++
		}
	}
	if covered != len(idx.vectors) {
		return fmt.Errorf("%w: %d chunks indexed, %d reachable by document", core.ErrIndexConsistency, len(idx.vectors), covered)
	}
	return nil
}
