package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/docfind/core"
)

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when a retry policy has no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrDimensionMismatch is returned when the provider returns vectors of a
	// different dimensionality than previously seen by this client. Mixing
	// model versions within one index lifetime is not supported.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

var fatalMarkers = []string{
	"invalid api key",
	"incorrect api key",
	"authentication",
	"unauthorized",
	"quota",
	"billing",
	"invalid request",
}

// fatalStatusCodes are matched as whole digit runs, not substrings, so a
// transient message carrying a port or byte count ("127.0.0.1:8400",
// "read 4010 bytes") is not misread as an HTTP status.
var fatalStatusCodes = []string{"400", "401", "403"}

// classify wraps a provider error into the shared taxonomy. Providers do
// not expose structured error kinds, so classification falls back to
// message matching; anything not recognizably fatal is treated as
// transient and left to the retry policy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrEmbeddingTransient) || errors.Is(err, core.ErrEmbeddingFatal) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrEmbeddingTransient, err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", core.ErrEmbeddingFatal, err)
		}
	}
	for _, code := range fatalStatusCodes {
		if containsNumber(msg, code) {
			return fmt.Errorf("%w: %w", core.ErrEmbeddingFatal, err)
		}
	}
	return fmt.Errorf("%w: %w", core.ErrEmbeddingTransient, err)
}

// containsNumber reports whether msg contains number as a complete run of
// digits.
func containsNumber(msg, number string) bool {
	for _, run := range strings.FieldsFunc(msg, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if run == number {
			return true
		}
	}
	return false
}
