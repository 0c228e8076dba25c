package model

import "time"

// SprintStatus 是 sprint 的生命周期状态
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "PLANNED"
	SprintActive    SprintStatus = "ACTIVE"
	SprintCompleted SprintStatus = "COMPLETED"
)

func (s SprintStatus) Valid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintCompleted:
		return true
	}
	return false
}

type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	StartDate time.Time    `json:"start_date"`
	EndDate   time.Time    `json:"end_date"`
	Status    SprintStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SprintRef 是带有所属组织 ID 的 sprint
type SprintRef struct {
	Sprint
	OrganizationID string `json:"organization_id"`
}
