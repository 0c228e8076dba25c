package project

import "errors"

// Project-related errors
var (
	// Validation errors
	ErrInvalidProjectID   = errors.New("invalid project ID")
	ErrEmptyName          = errors.New("name is required")
	ErrNameTooLong        = errors.New("name must be less than 100 characters")
	ErrKeyTooShort        = errors.New("key must be at least 2 characters")
	ErrKeyTooLong         = errors.New("key must be less than 100 characters")
	ErrDescriptionTooLong = errors.New("description must be less than 500 characters")

	// Business logic errors
	ErrProjectNotFound = errors.New("project not found")
	ErrDuplicateKey    = errors.New("a project with this key already exists")
)
