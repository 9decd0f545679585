package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks caller mistakes that must not be retried.
	ErrInvalidInput = errors.New("invalid input")
)
