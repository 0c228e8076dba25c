package mq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"scrumboard/pkg/trace"
)

// Routing keys on the events exchange.
const (
	RoutingIssueCreated        = "issue.created"
	RoutingIssueUpdated        = "issue.updated"
	RoutingIssueDeleted        = "issue.deleted"
	RoutingIssueReordered      = "issue.reordered"
	RoutingSprintCreated       = "sprint.created"
	RoutingSprintStatusChanged = "sprint.status_changed"
	RoutingSprintOverdue       = "sprint.overdue"
)

// Aggregate types recorded on outbox rows.
const (
	AggregateIssue  = "issue"
	AggregateSprint = "sprint"
)

// Envelope carries the fields every event has.
type Envelope struct {
	EventID        string    `json:"event_id"`
	OrganizationID string    `json:"organization_id"`
	ActorID        string    `json:"actor_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}

func NewEnvelope(ctx context.Context, organizationID, actorID string) Envelope {
	return Envelope{
		EventID:        uuid.NewString(),
		OrganizationID: organizationID,
		ActorID:        actorID,
		OccurredAt:     time.Now().UTC(),
		TraceID:        trace.FromContext(ctx),
	}
}

type IssueCreatedPayload struct {
	Envelope
	IssueID   string `json:"issue_id"`
	ProjectID string `json:"project_id"`
	SprintID  string `json:"sprint_id"`
	StatusID  string `json:"status_id"`
	Title     string `json:"title"`
	Priority  string `json:"priority"`
	Order     int    `json:"order"`
}

type IssueUpdatedPayload struct {
	Envelope
	IssueID      string `json:"issue_id"`
	ProjectID    string `json:"project_id"`
	SprintID     string `json:"sprint_id"`
	Title        string `json:"title"`
	FromStatusID string `json:"from_status_id,omitempty"`
	StatusID     string `json:"status_id"`
	FromPriority string `json:"from_priority,omitempty"`
	Priority     string `json:"priority"`
	Order        int    `json:"order"`
}

type IssueDeletedPayload struct {
	Envelope
	IssueID   string `json:"issue_id"`
	ProjectID string `json:"project_id"`
	SprintID  string `json:"sprint_id"`
	Title     string `json:"title"`
}

// ReorderedIssue is the post-reorder placement of one changed issue.
type ReorderedIssue struct {
	IssueID  string `json:"issue_id"`
	StatusID string `json:"status_id"`
	Order    int    `json:"order"`
}

type IssueReorderedPayload struct {
	Envelope
	ProjectID string           `json:"project_id"`
	SprintID  string           `json:"sprint_id"`
	Kind      string           `json:"kind"` // move / apply
	IssueID   string           `json:"issue_id,omitempty"`
	Changed   []ReorderedIssue `json:"changed"`
}

type SprintCreatedPayload struct {
	Envelope
	SprintID  string    `json:"sprint_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type SprintStatusChangedPayload struct {
	Envelope
	SprintID  string `json:"sprint_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type SprintOverduePayload struct {
	Envelope
	SprintID  string    `json:"sprint_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	EndDate   time.Time `json:"end_date"`
	Day       string    `json:"day"` // YYYY-MM-DD in the scanner's timezone
}
