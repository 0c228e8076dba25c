package status

import "errors"

var (
	ErrInvalidStatusID = errors.New("invalid status ID")
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrEmptyKey        = errors.New("key cannot be empty")
	ErrTooLong         = errors.New("name and key cannot exceed 100 characters")
	ErrNothingToUpdate = errors.New("nothing to update")

	ErrStatusNotFound = errors.New("status not found")
	ErrDuplicateKey   = errors.New("a status with this key already exists")
	ErrStatusInUse    = errors.New("cannot delete status with issues")
)
