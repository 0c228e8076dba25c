package model

import "time"

type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Key            string    `json:"key"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectDetail is a project with its sprints, newest first.
type ProjectDetail struct {
	Project
	Sprints []Sprint `json:"sprints"`
}
