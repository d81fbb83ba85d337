package repository

import "errors"

// Sentinel errors the service layer branches on. Postgres and memory
// implementations both return these, wrapped with context.
var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateCode is returned when a unique constraint on a code column
	// rejects an insert. ClinicCodeIssuer retries on it with the next sequence.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrNotConsumable is returned by Consume when the guarded update matched
	// no row: the code is missing, inactive, expired or exhausted. The caller
	// re-reads the row to classify.
	ErrNotConsumable = errors.New("code not consumable")
)
