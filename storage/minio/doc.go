// Package minio provides a storage.SnapshotStore backed by any
// S3-compatible object store, for deployments where index snapshots must
// survive the host that built them.
package minio
