package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical inputs
// always produce identical IDs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkIDFrom derives a chunk ID from its document and position.
// Re-chunking the same document with the same parameters yields identical IDs.
func ChunkIDFrom(documentID ID, offset, length int) ID {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(documentID))
	binary.LittleEndian.PutUint64(buf[8:], uint64(offset))
	binary.LittleEndian.PutUint64(buf[16:], uint64(length))

	h, _ := blake2b.New(8, nil)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ContentType identifies how a document's raw bytes are interpreted.
type ContentType int

const (
	// ContentTypePDF represents PDF documents requiring text extraction.
	ContentTypePDF ContentType = iota + 1
	// ContentTypeText represents plain text documents.
	ContentTypeText
	// ContentTypeCode represents source code files.
	ContentTypeCode
	// ContentTypeOther represents documents of unknown type, treated as plain text.
	ContentTypeOther
)

func (t ContentType) String() string {
	switch t {
	case ContentTypePDF:
		return "pdf"
	case ContentTypeText:
		return "text"
	case ContentTypeCode:
		return "code"
	case ContentTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

// Document represents an ingested document. A document is immutable once
// chunked; re-ingestion replaces all of its chunks in the index.
type Document struct {
	Id          ID
	Name        string // Display filename
	SourceURI   string // External storage locator, opaque to the core
	ContentType ContentType
	ChunkCount  int       // Number of chunks indexed for the current version
	InsertedAt  time.Time // When the document was first ingested
	UpdatedAt   time.Time // When the document was last re-ingested
}

// Chunk is a bounded passage of document text, the unit of embedding and retrieval.
type Chunk struct {
	Id         ID
	DocumentID ID
	Text       string
	Offset     int       // Position within the document, in runes
	Length     int       // Passage length, in runes
	Vector     []float32 // Embedding vector; empty while embedding is pending
}

// ChunkMeta is the metadata stored in the index alongside each chunk's vector.
type ChunkMeta struct {
	DocumentID ID
	Text       string
	Filename   string
	SourceURI  string
}

// ResultMetadata identifies the source document of a search result.
type ResultMetadata struct {
	Filename  string `json:"filename"`
	SourceURI string `json:"source_uri"`
}

// SearchResult represents a ranked search hit. Results are produced fresh
// per query and never persisted.
type SearchResult struct {
	ChunkID  ID             `json:"-"`
	Text     string         `json:"text"`
	Score    float32        `json:"score"`
	Rank     int            `json:"rank"`
	Metadata ResultMetadata `json:"metadata"`
}

// IngestState is the terminal state of a document ingestion.
type IngestState int

const (
	// IngestStateIndexed means every chunk was embedded and indexed.
	IngestStateIndexed IngestState = iota + 1
	// IngestStatePartiallyIndexed means some chunks failed embedding and were
	// skipped; re-ingestion is the recovery path.
	IngestStatePartiallyIndexed
	// IngestStateFailed means chunking itself failed and nothing was indexed.
	IngestStateFailed
	// IngestStateNoOp means the document produced zero chunks (empty content).
	IngestStateNoOp
)

func (s IngestState) String() string {
	switch s {
	case IngestStateIndexed:
		return "indexed"
	case IngestStatePartiallyIndexed:
		return "partially_indexed"
	case IngestStateFailed:
		return "failed"
	case IngestStateNoOp:
		return "no-op"
	default:
		return "unknown"
	}
}

// IngestResult reports the outcome of ingesting a single document.
// FailedChunks lists the indices of chunks whose embedding failed after
// retries; those chunks are not present in the index.
type IngestResult struct {
	DocumentID    ID
	State         IngestState
	ChunksIndexed int
	FailedChunks  []int
}
