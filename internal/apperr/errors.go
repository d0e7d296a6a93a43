// Package apperr defines the sentinel errors shared across the stores, the
// queue, and the API layer.
package apperr

import "errors"

var (
	// ErrNotFound covers both "resource does not exist" and "document
	// missing or corrupt"; the API maps both to 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks caller misuse, such as moving a page into the
	// notebook it already belongs to. The API maps it to 400.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists marks creation of a resource whose identifier is
	// already taken.
	ErrAlreadyExists = errors.New("already exists")
)
