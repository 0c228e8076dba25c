package sprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/internal/repository"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

const maxNameLength = 100

type Store interface {
	CreateSprint(ctx context.Context, s *model.Sprint, event repository.EventFunc[model.Sprint]) error
	ListByProject(ctx context.Context, projectID string) ([]model.Sprint, error)
	FindByID(ctx context.Context, orgID, id string) (*model.SprintRef, error)
	UpdateStatus(ctx context.Context, orgID, id string, transition repository.SprintTransition) (*model.SprintRef, error)
}

type ProjectFinder interface {
	FindByID(ctx context.Context, orgID, id string) (*model.Project, error)
}

// Service defines sprint lifecycle operations
type Service interface {
	Create(ctx context.Context, actor rbac.Principal, projectID string, req CreateRequest) (*model.Sprint, error)
	List(ctx context.Context, orgID, projectID string) ([]model.Sprint, error)
	Get(ctx context.Context, orgID, id string) (*model.SprintRef, error)
	// UpdateStatus moves the sprint to ACTIVE (only within its date range)
	// or COMPLETED (only from ACTIVE).
	UpdateStatus(ctx context.Context, actor rbac.Principal, id string, status model.SprintStatus) (*model.SprintRef, error)
}

type CreateRequest struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

type service struct {
	store    Store
	projects ProjectFinder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store Store, projects ProjectFinder, logger *zap.Logger) Service {
	return &service{store: store, projects: projects, logger: logger, now: time.Now}
}

func (s *service) Create(ctx context.Context, actor rbac.Principal, projectID string, req CreateRequest) (*model.Sprint, error) {
	sp := &model.Sprint{
		ProjectID: projectID,
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    model.SprintPlanned,
	}
	if err := validate(sp); err != nil {
		return nil, err
	}
	if err := s.checkProject(ctx, actor.OrganizationID, projectID); err != nil {
		return nil, err
	}

	err := s.store.CreateSprint(ctx, sp, func(created *model.Sprint) (*outbox.Event, error) {
		return outbox.NewEvent(contracts.AggregateSprint, created.ID, contracts.RoutingSprintCreated, contracts.SprintCreatedPayload{
			Envelope:  contracts.NewEnvelope(ctx, actor.OrganizationID, actor.UserID),
			SprintID:  created.ID,
			ProjectID: created.ProjectID,
			Name:      created.Name,
			StartDate: created.StartDate,
			EndDate:   created.EndDate,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sprint: %w", err)
	}
	s.logger.Info("sprint created", zap.String("sprint_id", sp.ID), zap.String("project_id", projectID))
	return sp, nil
}

func (s *service) List(ctx context.Context, orgID, projectID string) ([]model.Sprint, error) {
	if err := s.checkProject(ctx, orgID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

func (s *service) Get(ctx context.Context, orgID, id string) (*model.SprintRef, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSprintID
	}
	sp, err := s.store.FindByID(ctx, orgID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSprintNotFound
	}
	return sp, err
}

func (s *service) UpdateStatus(ctx context.Context, actor rbac.Principal, id string, status model.SprintStatus) (*model.SprintRef, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSprintID
	}
	if status != model.SprintActive && status != model.SprintCompleted {
		return nil, ErrInvalidStatus
	}

	sp, err := s.store.UpdateStatus(ctx, actor.OrganizationID, id, func(current *model.SprintRef) (model.SprintStatus, *outbox.Event, error) {
		if err := CheckTransition(current, status, s.now()); err != nil {
			return "", nil, err
		}
		event, err := outbox.NewEvent(contracts.AggregateSprint, current.ID, contracts.RoutingSprintStatusChanged, contracts.SprintStatusChangedPayload{
			Envelope:  contracts.NewEnvelope(ctx, current.OrganizationID, actor.UserID),
			SprintID:  current.ID,
			ProjectID: current.ProjectID,
			Name:      current.Name,
			From:      string(current.Status),
			To:        string(status),
		})
		return status, event, err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSprintNotFound
		}
		return nil, err
	}
	s.logger.Info("sprint status changed", zap.String("sprint_id", id), zap.String("status", string(status)))
	return sp, nil
}

// CheckTransition validates moving sp to next at time now.
func CheckTransition(sp *model.SprintRef, next model.SprintStatus, now time.Time) error {
	switch next {
	case model.SprintActive:
		if now.Before(sp.StartDate) || now.After(sp.EndDate) {
			return ErrOutsideDateRange
		}
	case model.SprintCompleted:
		if sp.Status != model.SprintActive {
			return ErrNotActive
		}
	default:
		return ErrInvalidStatus
	}
	return nil
}

func (s *service) checkProject(ctx context.Context, orgID, projectID string) error {
	if _, err := uuid.Parse(projectID); err != nil {
		return ErrInvalidProjectID
	}
	if _, err := s.projects.FindByID(ctx, orgID, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}

func validate(sp *model.Sprint) error {
	switch n := utf8.RuneCountInString(sp.Name); {
	case n == 0:
		return ErrEmptyName
	case n > maxNameLength:
		return ErrNameTooLong
	}
	if sp.StartDate.IsZero() || sp.EndDate.IsZero() {
		return ErrMissingDates
	}
	if !sp.EndDate.After(sp.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}
