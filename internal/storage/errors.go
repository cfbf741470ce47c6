package storage

import "errors"

// Sentinel errors shared by every store implementation. Callers match
// with errors.Is.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key
	// already exists. Stores are append-only; updates are not allowed.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when a record fails validation
	// before it reaches the backend.
	ErrInvalidInput = errors.New("invalid input")
)
