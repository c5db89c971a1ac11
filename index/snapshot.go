package index

import (
	"fmt"
	"sort"

	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docfind/core"
)

// snapshotVersion is bumped whenever the on-disk layout changes.
const snapshotVersion = 1

// Snapshot serializes the full index state into a byte slice suitable for
// a snapshot store. Entries are written in insertion order so the same
// index state always produces the same bytes, and the original insertion
// order survives a restore.
func (idx *Index) Snapshot() []byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]core.ID, 0, len(idx.vectors))
	for chunkID := range idx.vectors {
		ids = append(ids, chunkID)
	}
	sort.Slice(ids, func(i, j int) bool {
		return idx.seqs[ids[i]] < idx.seqs[ids[j]]
	})

	size := varint.Int.Size(snapshotVersion)
	size += varint.Int.Size(idx.dimension)
	size += varint.Uint64.Size(idx.nextSeq)
	size += varint.Int.Size(len(ids))
	for _, chunkID := range ids {
		size += core.IDMUS.Size(chunkID)
		size += varint.Uint64.Size(idx.seqs[chunkID])
		size += core.VectorMUS.Size(idx.vectors[chunkID])
		size += core.ChunkMetaMUS.Size(idx.meta[chunkID])
	}

	bs := make([]byte, size)
	n := varint.Int.Marshal(snapshotVersion, bs)
	n += varint.Int.Marshal(idx.dimension, bs[n:])
	n += varint.Uint64.Marshal(idx.nextSeq, bs[n:])
	n += varint.Int.Marshal(len(ids), bs[n:])
	for _, chunkID := range ids {
		n += core.IDMUS.Marshal(chunkID, bs[n:])
		n += varint.Uint64.Marshal(idx.seqs[chunkID], bs[n:])
		n += core.VectorMUS.Marshal(idx.vectors[chunkID], bs[n:])
		n += core.ChunkMetaMUS.Marshal(idx.meta[chunkID], bs[n:])
	}
	return bs
}

// Restore loads a snapshot into an empty index. Restoring over live
// entries is refused with ErrNotEmpty so a running index cannot be
// clobbered by a late restore.
func (idx *Index) Restore(bs []byte) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.vectors) > 0 {
		return ErrNotEmpty
	}

	version, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}
	if version != snapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, version, snapshotVersion)
	}

	var n1 int
	dimension, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}
	nextSeq, n1, err := varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}
	count, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotFormat, err)
	}
	if count < 0 {
		return fmt.Errorf("%w: negative entry count", ErrSnapshotFormat)
	}

	vectors := make(map[core.ID][]float32, count)
	meta := make(map[core.ID]core.ChunkMeta, count)
	seqs := make(map[core.ID]uint64, count)
	byDoc := make(map[core.ID]map[core.ID]struct{})

	for i := 0; i < count; i++ {
		chunkID, n1, err := core.IDMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrSnapshotFormat, i, err)
		}
		seq, n1, err := varint.Uint64.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrSnapshotFormat, i, err)
		}
		vector, n1, err := core.VectorMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrSnapshotFormat, i, err)
		}
		m, n1, err := core.ChunkMetaMUS.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrSnapshotFormat, i, err)
		}
		if len(vector) != dimension {
			return fmt.Errorf("%w: entry %d has dimension %d, snapshot declares %d", ErrSnapshotFormat, i, len(vector), dimension)
		}

		vectors[chunkID] = vector
		meta[chunkID] = m
		seqs[chunkID] = seq
		chunks, ok := byDoc[m.DocumentID]
		if !ok {
			chunks = make(map[core.ID]struct{})
			byDoc[m.DocumentID] = chunks
		}
		chunks[chunkID] = struct{}{}
	}

	idx.dimension = dimension
	idx.nextSeq = nextSeq
	idx.vectors = vectors
	idx.meta = meta
	idx.seqs = seqs
	idx.byDoc = byDoc

	idx.logger.Info("index restored from snapshot", "chunks", count, "documents", len(byDoc), "dimension", dimension)
	return nil
}
