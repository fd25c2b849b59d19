package errors

import "errors"

// Common application errors
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned when the caller has no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks the rights for an action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a write would violate a uniqueness rule
	// or an invalid state transition is requested.
	ErrConflict = errors.New("resource state conflict")
)
