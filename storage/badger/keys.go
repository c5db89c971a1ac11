package badger

import (
	"fmt"

	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/storage"
)

// Key prefixes for different data types
const (
	documentPrefix = "docrec"
	snapshotPrefix = "idxsnap"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id core.ID) []byte {
	return append([]byte(documentPrefix+":"), storage.MarshalID(id)...)
}

// documentKeyID recovers the ID a document record is filed under.
func documentKeyID(key []byte) (core.ID, error) {
	return storage.UnmarshalID(key[len(documentPrefix)+1:])
}

// makeSnapshotKey generates a key for a named index snapshot.
func makeSnapshotKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", snapshotPrefix, name))
}
