// Package apperr defines the sentinel errors shared across stores and
// services. Handlers translate them to HTTP status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound is returned by mutations addressing an unknown record id.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would claim a canonical file path
	// already owned by a different record.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists is returned when creating a record whose id is
	// already registered.
	ErrAlreadyExists = errors.New("already exists")
)
