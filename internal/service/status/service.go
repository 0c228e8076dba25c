package status

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/repository"
)

const maxLength = 100

type Store interface {
	ListByOrganization(ctx context.Context, orgID string) ([]model.Status, error)
	CreateStatus(ctx context.Context, s *model.Status) error
	UpdateStatus(ctx context.Context, orgID, id string, name, key *string) (*model.Status, error)
	DeleteStatus(ctx context.Context, orgID, id string) error
}

// Service manages the organization's board columns.
type Service interface {
	List(ctx context.Context, orgID string) ([]model.Status, error)
	Create(ctx context.Context, orgID, name, key string) (*model.Status, error)
	Update(ctx context.Context, orgID, id string, name, key *string) (*model.Status, error)
	Delete(ctx context.Context, orgID, id string) error
}

type service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) Service {
	return &service{store: store, logger: logger}
}

func (s *service) List(ctx context.Context, orgID string) ([]model.Status, error) {
	return s.store.ListByOrganization(ctx, orgID)
}

func (s *service) Create(ctx context.Context, orgID, name, key string) (*model.Status, error) {
	st := &model.Status{OrganizationID: orgID, Name: strings.TrimSpace(name), Key: strings.TrimSpace(key)}
	if st.Name == "" {
		return nil, ErrEmptyName
	}
	if st.Key == "" {
		return nil, ErrEmptyKey
	}
	if utf8.RuneCountInString(st.Name) > maxLength || utf8.RuneCountInString(st.Key) > maxLength {
		return nil, ErrTooLong
	}

	if err := s.store.CreateStatus(ctx, st); err != nil {
		return nil, mapError(err)
	}
	s.logger.Info("status created", zap.String("status_id", st.ID), zap.String("key", st.Key))
	return st, nil
}

func (s *service) Update(ctx context.Context, orgID, id string, name, key *string) (*model.Status, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidStatusID
	}
	if name == nil && key == nil {
		return nil, ErrNothingToUpdate
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, ErrEmptyName
		}
		if utf8.RuneCountInString(n) > maxLength {
			return nil, ErrTooLong
		}
		name = &n
	}
	if key != nil {
		k := strings.TrimSpace(*key)
		if k == "" {
			return nil, ErrEmptyKey
		}
		if utf8.RuneCountInString(k) > maxLength {
			return nil, ErrTooLong
		}
		key = &k
	}

	st, err := s.store.UpdateStatus(ctx, orgID, id, name, key)
	if err != nil {
		return nil, mapError(err)
	}
	return st, nil
}

func (s *service) Delete(ctx context.Context, orgID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidStatusID
	}
	if err := s.store.DeleteStatus(ctx, orgID, id); err != nil {
		return mapError(err)
	}
	s.logger.Info("status deleted", zap.String("status_id", id))
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrStatusNotFound
	case errors.Is(err, repository.ErrDuplicateKey):
		return ErrDuplicateKey
	case errors.Is(err, repository.ErrInUse):
		return ErrStatusInUse
	}
	return err
}
