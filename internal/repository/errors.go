package repository

import (
	"errors"

	"scrumboard/pkg/db"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a unique key (project key, status key) is taken.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInUse is returned when a row is still referenced by other rows.
	ErrInUse = errors.New("record is still referenced")
	// ErrStaleIssue is returned when a placement names an issue that is no
	// longer part of the sprint.
	ErrStaleIssue = errors.New("issue is no longer in the sprint")
	// ErrOrderConflict is returned when a commit would leave two issues at the
	// same position of one bucket.
	ErrOrderConflict = errors.New("conflicting issue order")
)

const bucketOrderConstraint = "issues_bucket_order_unique"

// mapError translates PostgreSQL errors into repository errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err) && db.ConstraintName(err) == bucketOrderConstraint:
		return ErrOrderConflict
	case db.IsUniqueViolation(err):
		return ErrDuplicateKey
	}
	return err
}
