package project

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/repository"
)

const (
	maxNameLength        = 100
	minKeyLength         = 2
	maxKeyLength         = 100
	maxDescriptionLength = 500
)

type Store interface {
	CreateProject(ctx context.Context, p *model.Project) error
	ListByOrganization(ctx context.Context, orgID string) ([]model.Project, error)
	FindByID(ctx context.Context, orgID, id string) (*model.Project, error)
	DeleteProject(ctx context.Context, orgID, id string) error
}

type SprintLister interface {
	ListByProject(ctx context.Context, projectID string) ([]model.Sprint, error)
}

// Service defines all project-related business operations
type Service interface {
	Create(ctx context.Context, orgID string, req CreateRequest) (*model.Project, error)
	List(ctx context.Context, orgID string) ([]model.Project, error)
	Get(ctx context.Context, orgID, id string) (*model.ProjectDetail, error)
	Delete(ctx context.Context, orgID, id string) error
}

type CreateRequest struct {
	Name        string
	Key         string
	Description string
}

type service struct {
	store   Store
	sprints SprintLister
	logger  *zap.Logger
}

func NewService(store Store, sprints SprintLister, logger *zap.Logger) Service {
	return &service{store: store, sprints: sprints, logger: logger}
}

func (s *service) Create(ctx context.Context, orgID string, req CreateRequest) (*model.Project, error) {
	p := &model.Project{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Key:            strings.TrimSpace(req.Key),
		Description:    strings.TrimSpace(req.Description),
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.store.CreateProject(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	s.logger.Info("project created",
		zap.String("project_id", p.ID),
		zap.String("organization_id", orgID),
		zap.String("key", p.Key),
	)
	return p, nil
}

func (s *service) List(ctx context.Context, orgID string) ([]model.Project, error) {
	return s.store.ListByOrganization(ctx, orgID)
}

func (s *service) Get(ctx context.Context, orgID, id string) (*model.ProjectDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidProjectID
	}
	p, err := s.store.FindByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	sprints, err := s.sprints.ListByProject(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	return &model.ProjectDetail{Project: *p, Sprints: sprints}, nil
}

func (s *service) Delete(ctx context.Context, orgID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidProjectID
	}
	if err := s.store.DeleteProject(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	s.logger.Info("project deleted", zap.String("project_id", id), zap.String("organization_id", orgID))
	return nil
}

func validate(p *model.Project) error {
	switch n := utf8.RuneCountInString(p.Name); {
	case n == 0:
		return ErrEmptyName
	case n > maxNameLength:
		return ErrNameTooLong
	}
	switch n := utf8.RuneCountInString(p.Key); {
	case n < minKeyLength:
		return ErrKeyTooShort
	case n > maxKeyLength:
		return ErrKeyTooLong
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
