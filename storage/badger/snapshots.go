package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/storage"
)

// SnapshotStore implements storage.SnapshotStore for BadgerDB.
// Snapshots are stored whole as single values; BadgerDB handles values
// well past the size an index snapshot reaches in practice.
type SnapshotStore struct {
	backend *Backend
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(backend *Backend) (*SnapshotStore, error) {
	return &SnapshotStore{backend: backend}, nil
}

// Close is a no-op; the store shares the backend's lifetime.
func (s *SnapshotStore) Close() error {
	return nil
}

// PutSnapshot stores data under name, replacing any previous snapshot.
func (s *SnapshotStore) PutSnapshot(ctx context.Context, name string, data []byte) error {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeSnapshotKey(name), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return fmt.Errorf("%w: storing snapshot %q: %w", core.ErrPersistence, name, err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot stored under name.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSnapshotKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading snapshot %q: %w", core.ErrPersistence, name, err)
	}
	return data, nil
}

// HasSnapshot reports whether a snapshot exists under name.
func (s *SnapshotStore) HasSnapshot(ctx context.Context, name string) (bool, error) {
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeSnapshotKey(name))
		return err
	}, false)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: checking snapshot %q: %w", core.ErrPersistence, name, err)
	}
	return true, nil
}
