package issue

import "errors"

// Issue-related errors
var (
	// Validation errors
	ErrInvalidIssueID   = errors.New("invalid issue ID")
	ErrInvalidProjectID = errors.New("invalid project ID")
	ErrInvalidSprintID  = errors.New("invalid sprint ID")
	ErrEmptyTitle       = errors.New("title is required")
	ErrInvalidPriority  = errors.New("priority must be one of LOW, MEDIUM, HIGH, URGENT")
	ErrNothingToUpdate  = errors.New("nothing to update")

	// Business logic errors
	ErrProjectNotFound    = errors.New("project not found")
	ErrSprintNotFound     = errors.New("sprint not found")
	ErrIssueNotFound      = errors.New("issue not found")
	ErrUnknownStatus      = errors.New("status does not belong to the organization")
	ErrAssigneeNotMember  = errors.New("assignee is not a member of the organization")
	ErrNotReporterOrAdmin = errors.New("only the reporter or an admin can delete this issue")
)
