package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEntityType is returned for entity types outside the supported set.
	ErrInvalidEntityType = errors.New("invalid entity type")
	// ErrInvalidAction is returned for history actions outside the supported set.
	ErrInvalidAction = errors.New("invalid history action")
)
