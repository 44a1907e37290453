package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrEntityNotFound is returned when an entity ID does not exist.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when creating an entity with an ID that
	// already exists.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("entity: invalid")

	// ErrInvalidBindingRef is returned for a malformed binding reference.
	ErrInvalidBindingRef = errors.New("entity: invalid binding reference")

	// ErrAlreadyBound is returned when binding an entity that already
	// references another binding.
	ErrAlreadyBound = errors.New("entity: already bound")
)
