package index

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the dimensionality already established by the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector is returned when an entry carries a nil or empty vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrNotEmpty is returned when a snapshot restore is attempted on an
	// index that already holds entries.
	ErrNotEmpty = errors.New("index is not empty")

	// ErrSnapshotFormat is returned when snapshot bytes cannot be decoded.
	ErrSnapshotFormat = errors.New("invalid snapshot format")

	// ErrSnapshotVersion is returned when a snapshot was written by an
	// unsupported format version.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)
