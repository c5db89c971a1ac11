package search

import "errors"

var (
	// ErrIndexRequired is returned when an index is not provided.
	ErrIndexRequired = errors.New("index required")

	// ErrEmbedderRequired is returned when a query embedder is not provided.
	ErrEmbedderRequired = errors.New("query embedder required")

	// ErrInvalidThreshold is returned when a score floor or cumulative
	// target is out of range.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidOversample is returned when the oversampling factor is not
	// positive.
	ErrInvalidOversample = errors.New("oversample factor must be greater than 0")
)
