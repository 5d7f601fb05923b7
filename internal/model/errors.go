package model

import "errors"

// Sentinel errors shared across services. Handlers map these onto HTTP
// status codes; everything else is a 500.
var (
	// ErrNotFound means a referenced event, job, or entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a deliberate single write hit a uniqueness
	// constraint. The confirm path never returns this; it reports the
	// entry as skipped instead.
	ErrConflict = errors.New("already exists")

	// ErrInvalidInput means a required field is missing or malformed.
	// Rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")
)
