package model

import "time"

type Activity struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	OrganizationID string    `json:"organization_id"`
	ProjectID      *string   `json:"project_id,omitempty"`
	SprintID       *string   `json:"sprint_id,omitempty"`
	IssueID        *string   `json:"issue_id,omitempty"`
	Kind           string    `json:"kind"`
	Message        string    `json:"message"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}
