package storage

import (
	"context"

	"github.com/poiesic/docfind/core"
)

// DocumentRepository tracks the documents known to the service: what was
// ingested, when, and how many chunks it produced. Implementations must
// be thread-safe and support concurrent access.
type DocumentRepository interface {
	// PutDocument inserts or replaces a document record.
	// Sets InsertedAt on first write and UpdatedAt on every write.
	PutDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document record by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments retrieves all document records, ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document record by ID.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// Close closes the repository and releases resources.
	Close() error
}

// SnapshotStore persists opaque index snapshots under a name. The index
// treats snapshot failures as non-fatal, so implementations should wrap
// errors in core.ErrPersistence where the cause is the backing store.
type SnapshotStore interface {
	// PutSnapshot stores data under name, replacing any previous snapshot.
	PutSnapshot(ctx context.Context, name string, data []byte) error

	// GetSnapshot retrieves the snapshot stored under name.
	// Returns ErrNotFound if no snapshot exists.
	GetSnapshot(ctx context.Context, name string) ([]byte, error)

	// HasSnapshot reports whether a snapshot exists under name.
	HasSnapshot(ctx context.Context, name string) (bool, error)

	// Close closes the store and releases resources.
	Close() error
}
