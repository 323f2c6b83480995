package domain

import "errors"

var (
	// ErrValidation marks invalid input at a domain boundary.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lead that could not be resolved.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an optimistic commit that lost a race: the lead's
	// status changed between read and write. The stale write is discarded.
	ErrConflict = errors.New("conflict")

	// ErrQuotaExhausted marks the daily send quota being reached. It stops
	// the current batch run early; untouched leads stay eligible.
	ErrQuotaExhausted = errors.New("send quota exhausted")
)
