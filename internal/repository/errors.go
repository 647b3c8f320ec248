package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record doesn't exist in the
	// expected collection.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional transition (claim) loses to
	// a concurrent caller.
	ErrConflict = errors.New("conflict: record was claimed by another caller")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
