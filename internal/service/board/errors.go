package board

import "errors"

var (
	// Validation errors
	ErrInvalidSprintID = errors.New("invalid sprint ID")
	ErrUnknownStatus   = errors.New("status does not belong to the organization")
	ErrEmptyBatch      = errors.New("order batch is empty")

	// Policy errors
	ErrSprintNotFound   = errors.New("sprint not found")
	ErrSprintNotStarted = errors.New("sprint has not started")
	ErrSprintCompleted  = errors.New("sprint is completed")
	ErrIssueNotFound    = errors.New("issue not found")
	ErrOrderConflict    = errors.New("issue order changed concurrently")
)
