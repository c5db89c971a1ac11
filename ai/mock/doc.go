// Package mock provides test doubles for the ai package interfaces.
//
// The mock embedder produces deterministic unit vectors derived from an
// FNV hash of the input text, so identical texts always embed identically
// across test runs. Custom behavior can be injected per test via function
// fields.
package mock
