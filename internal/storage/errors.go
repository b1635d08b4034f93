package storage

import "errors"

// Sentinel errors returned by repository implementations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey indicates a unique constraint violation.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput indicates the input fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
