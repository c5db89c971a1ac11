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


package core

import "errors"

// Error taxonomy shared across all components.
var (
	// ErrChunking indicates document content could not be chunked
	// (unsupported or corrupt). Fatal for the document; not retried.
	ErrChunking = errors.New("chunking failed")

	// ErrEmbeddingTransient indicates a retryable embedding provider failure
	// (rate limit, timeout). Retried with backoff by the embedding client.
	ErrEmbeddingTransient = errors.New("transient embedding failure")

	// ErrEmbeddingFatal indicates a non-retryable embedding failure
	// (bad credentials, permanently invalid input). Propagated immediately.
	ErrEmbeddingFatal = errors.New("fatal embedding failure")

	// ErrIndexConsistency indicates the vector and metadata mappings have
	// diverged. Always fatal; recovery is restore-from-last-good-snapshot.
	ErrIndexConsistency = errors.New("index consistency violation")

	// ErrPersistence indicates a snapshot or restore I/O failure. The live
	// index keeps serving; this is surfaced as a durability-risk warning.
	ErrPersistence = errors.New("persistence failure")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocumentName indicates the document Name field is empty.
	ErrEmptyDocumentName = errors.New("document name cannot be empty")

	// ErrInvalidContentType indicates an invalid ContentType value.
	ErrInvalidContentType = errors.New("invalid content type")
)

// IsTransient reports whether err is retryable by the caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingTransient)
}
