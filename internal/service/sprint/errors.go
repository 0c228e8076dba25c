package sprint

import "errors"

var (
	// Validation errors
	ErrInvalidSprintID  = errors.New("invalid sprint ID")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrEmptyName        = errors.New("name is required")
	ErrNameTooLong      = errors.New("name must be less than 100 characters")
	ErrMissingDates     = errors.New("start date and end date are required")
	ErrEndBeforeStart   = errors.New("end date must be after start date")
	ErrInvalidStatus    = errors.New("invalid sprint status")

	// Business logic errors
	ErrProjectNotFound  = errors.New("project not found")
	ErrSprintNotFound   = errors.New("sprint not found")
	ErrOutsideDateRange = errors.New("cannot start sprint outside of its date range")
	ErrNotActive        = errors.New("only an active sprint can be completed")
)
