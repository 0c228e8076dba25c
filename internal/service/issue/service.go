package issue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/internal/repository"
	"scrumboard/pkg/logger"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

type Store interface {
	CreateIssue(ctx context.Context, issue *model.Issue, event repository.EventFunc[model.Issue]) error
	ListBySprint(ctx context.Context, sprintID string) ([]model.IssueView, error)
	FindByID(ctx context.Context, orgID, id string) (*model.Issue, error)
	UpdateIssue(ctx context.Context, orgID, id string, change repository.IssueChange, event repository.EventFunc[model.Issue]) (*model.Issue, error)
	DeleteIssue(ctx context.Context, issue *model.Issue, event repository.EventFunc[model.Issue]) error
}

type ProjectFinder interface {
	FindByID(ctx context.Context, orgID, id string) (*model.Project, error)
}

type SprintFinder interface {
	FindByID(ctx context.Context, orgID, id string) (*model.SprintRef, error)
}

type StatusFinder interface {
	FindByID(ctx context.Context, orgID, id string) (*model.Status, error)
}

type MemberChecker interface {
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
}

// Service defines issue operations outside of board reordering.
type Service interface {
	Create(ctx context.Context, actor rbac.Principal, projectID string, req CreateRequest) (*model.Issue, error)
	ListBySprint(ctx context.Context, orgID, sprintID string) ([]model.IssueView, error)
	// Update changes status and/or priority. A new status appends the issue
	// at the end of that column.
	Update(ctx context.Context, actor rbac.Principal, id string, req UpdateRequest) (*model.Issue, error)
	Delete(ctx context.Context, actor rbac.Principal, id string) error
}

type CreateRequest struct {
	Title       string
	Description string
	StatusID    string
	Priority    model.Priority
	SprintID    string
	AssigneeID  *string
}

type UpdateRequest struct {
	StatusID *string
	Priority *model.Priority
}

// Deps groups the lookups the service validates against.
type Deps struct {
	Projects ProjectFinder
	Sprints  SprintFinder
	Statuses StatusFinder
	Members  MemberChecker
}

type service struct {
	store  Store
	deps   Deps
	logger *zap.Logger
}

func NewService(store Store, deps Deps, logger *zap.Logger) Service {
	return &service{store: store, deps: deps, logger: logger}
}

func (s *service) Create(ctx context.Context, actor rbac.Principal, projectID string, req CreateRequest) (*model.Issue, error) {
	issue := &model.Issue{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StatusID:    req.StatusID,
		Priority:    req.Priority,
		ProjectID:   projectID,
		SprintID:    req.SprintID,
		ReporterID:  actor.UserID,
		AssigneeID:  req.AssigneeID,
	}
	if issue.Priority == "" {
		issue.Priority = model.PriorityMedium
	}
	if issue.AssigneeID != nil && *issue.AssigneeID == "" {
		issue.AssigneeID = nil
	}
	if err := s.validateCreate(ctx, actor.OrganizationID, issue); err != nil {
		return nil, err
	}

	err := s.store.CreateIssue(ctx, issue, func(created *model.Issue) (*outbox.Event, error) {
		return outbox.NewEvent(contracts.AggregateIssue, created.ID, contracts.RoutingIssueCreated, contracts.IssueCreatedPayload{
			Envelope:  contracts.NewEnvelope(ctx, actor.OrganizationID, actor.UserID),
			IssueID:   created.ID,
			ProjectID: created.ProjectID,
			SprintID:  created.SprintID,
			StatusID:  created.StatusID,
			Title:     created.Title,
			Priority:  string(created.Priority),
			Order:     created.Order,
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSprintNotFound
		}
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("issue created",
		zap.String("issue_id", issue.ID),
		zap.String("sprint_id", issue.SprintID),
		zap.Int("order", issue.Order),
	)
	return issue, nil
}

func (s *service) ListBySprint(ctx context.Context, orgID, sprintID string) ([]model.IssueView, error) {
	if _, err := uuid.Parse(sprintID); err != nil {
		return nil, ErrInvalidSprintID
	}
	if _, err := s.deps.Sprints.FindByID(ctx, orgID, sprintID); err != nil {
		return nil, notFound(err, ErrSprintNotFound)
	}
	return s.store.ListBySprint(ctx, sprintID)
}

func (s *service) Update(ctx context.Context, actor rbac.Principal, id string, req UpdateRequest) (*model.Issue, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidIssueID
	}
	if req.StatusID == nil && req.Priority == nil {
		return nil, ErrNothingToUpdate
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if req.StatusID != nil {
		if err := s.checkStatus(ctx, actor.OrganizationID, *req.StatusID); err != nil {
			return nil, err
		}
	}

	before, err := s.store.FindByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, notFound(err, ErrIssueNotFound)
	}

	updated, err := s.store.UpdateIssue(ctx, actor.OrganizationID, id,
		repository.IssueChange{StatusID: req.StatusID, Priority: req.Priority},
		func(after *model.Issue) (*outbox.Event, error) {
			payload := contracts.IssueUpdatedPayload{
				Envelope:  contracts.NewEnvelope(ctx, actor.OrganizationID, actor.UserID),
				IssueID:   after.ID,
				ProjectID: after.ProjectID,
				SprintID:  after.SprintID,
				Title:     after.Title,
				StatusID:  after.StatusID,
				Priority:  string(after.Priority),
				Order:     after.Order,
			}
			if before.StatusID != after.StatusID {
				payload.FromStatusID = before.StatusID
			}
			if before.Priority != after.Priority {
				payload.FromPriority = string(before.Priority)
			}
			return outbox.NewEvent(contracts.AggregateIssue, after.ID, contracts.RoutingIssueUpdated, payload)
		},
	)
	if err != nil {
		return nil, notFound(err, ErrIssueNotFound)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actor rbac.Principal, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidIssueID
	}
	issue, err := s.store.FindByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return notFound(err, ErrIssueNotFound)
	}
	if issue.ReporterID != actor.UserID && !actor.IsAdmin() {
		return ErrNotReporterOrAdmin
	}

	err = s.store.DeleteIssue(ctx, issue, func(deleted *model.Issue) (*outbox.Event, error) {
		return outbox.NewEvent(contracts.AggregateIssue, deleted.ID, contracts.RoutingIssueDeleted, contracts.IssueDeletedPayload{
			Envelope:  contracts.NewEnvelope(ctx, actor.OrganizationID, actor.UserID),
			IssueID:   deleted.ID,
			ProjectID: deleted.ProjectID,
			SprintID:  deleted.SprintID,
			Title:     deleted.Title,
		})
	})
	if err != nil {
		return notFound(err, ErrIssueNotFound)
	}
	logger.WithTrace(ctx, s.logger).Info("issue deleted", zap.String("issue_id", id))
	return nil
}

func (s *service) validateCreate(ctx context.Context, orgID string, issue *model.Issue) error {
	if issue.Title == "" {
		return ErrEmptyTitle
	}
	if !issue.Priority.Valid() {
		return ErrInvalidPriority
	}
	if _, err := uuid.Parse(issue.ProjectID); err != nil {
		return ErrInvalidProjectID
	}
	if _, err := uuid.Parse(issue.SprintID); err != nil {
		return ErrInvalidSprintID
	}

	if _, err := s.deps.Projects.FindByID(ctx, orgID, issue.ProjectID); err != nil {
		return notFound(err, ErrProjectNotFound)
	}
	sprint, err := s.deps.Sprints.FindByID(ctx, orgID, issue.SprintID)
	if err != nil {
		return notFound(err, ErrSprintNotFound)
	}
	if sprint.ProjectID != issue.ProjectID {
		return ErrSprintNotFound
	}
	if err := s.checkStatus(ctx, orgID, issue.StatusID); err != nil {
		return err
	}
	if issue.AssigneeID != nil {
		ok, err := s.deps.Members.IsMember(ctx, orgID, *issue.AssigneeID)
		if err != nil {
			return fmt.Errorf("failed to check assignee: %w", err)
		}
		if !ok {
			return ErrAssigneeNotMember
		}
	}
	return nil
}

func (s *service) checkStatus(ctx context.Context, orgID, statusID string) error {
	if _, err := uuid.Parse(statusID); err != nil {
		return ErrUnknownStatus
	}
	if _, err := s.deps.Statuses.FindByID(ctx, orgID, statusID); err != nil {
		return notFound(err, ErrUnknownStatus)
	}
	return nil
}

// notFound replaces repository.ErrNotFound with target.
func notFound(err, target error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}
