package organization

import "errors"

var (
	ErrMissingUser         = errors.New("session has no user")
	ErrMissingOrganization = errors.New("organization required")
	ErrUnknownRole         = errors.New("unknown organization role")
	ErrNotFound            = errors.New("organization not found")
	ErrUserNotFound        = errors.New("user not found")
)
