// Package apperr defines the sentinel errors shared across Codex packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrValidationRejected marks an ingest item refused before any bytes
	// were fetched or decoded (blocked extension, size over the ceiling).
	ErrValidationRejected = errors.New("validation rejected")

	// ErrStoreUnavailable marks a failure of the persistence layer itself.
	// Nothing was written when it is returned.
	ErrStoreUnavailable = errors.New("store unavailable")
)
