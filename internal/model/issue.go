package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StatusID    string    `json:"status_id"`
	Order       int       `json:"order"`
	Priority    Priority  `json:"priority"`
	ProjectID   string    `json:"project_id"`
	SprintID    string    `json:"sprint_id"`
	ReporterID  string    `json:"reporter_id"`
	AssigneeID  *string   `json:"assignee_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IssueView is an issue with the people it references, as listed on a board.
type IssueView struct {
	Issue
	Reporter *User `json:"reporter,omitempty"`
	Assignee *User `json:"assignee,omitempty"`
}

// Placement is an issue's position on its sprint board.
type Placement struct {
	IssueID  string `json:"id"`
	StatusID string `json:"status_id"`
	Order    int    `json:"order"`
}
