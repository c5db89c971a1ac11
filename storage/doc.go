// Package storage defines the persistence interfaces for the document
// registry and index snapshots, plus the serialization helpers shared by
// the concrete backends.
//
// The badger subpackage provides both interfaces over an embedded
// BadgerDB, suitable for single-node deployments. The minio subpackage
// provides a SnapshotStore over any S3-compatible object store for
// deployments where the snapshot must survive the host.
package storage
