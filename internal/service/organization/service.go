package organization

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/repository"
	"scrumboard/pkg/rbac"
)

const (
	defaultOrganizationName = "My Organization"
	defaultUserName         = "Unknown User"
)

type Store interface {
	SyncMember(ctx context.Context, u *model.User, org *model.Organization, role string) error
	FindByID(ctx context.Context, id string) (*model.Organization, error)
	FindUser(ctx context.Context, id string) (*model.User, error)
	ListMembers(ctx context.Context, orgID string) ([]model.Member, error)
}

// Service keeps the local copy of users, organizations and memberships in
// step with the identity provider's session claims.
type Service interface {
	Sync(ctx context.Context, req SyncRequest) error
	Me(ctx context.Context, userID string) (*model.User, error)
	Organization(ctx context.Context, orgID string) (*model.Organization, error)
	Members(ctx context.Context, orgID string) ([]model.Member, error)
}

// SyncRequest is the subset of session claims stored locally.
type SyncRequest struct {
	UserID   string
	Email    string
	Name     string
	ImageURL string
	OrgID    string
	OrgSlug  string
	Role     string
}

type service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) Service {
	return &service{store: store, logger: logger}
}

func (s *service) Sync(ctx context.Context, req SyncRequest) error {
	if req.UserID == "" {
		return ErrMissingUser
	}
	if req.OrgID == "" {
		return ErrMissingOrganization
	}
	if !rbac.IsKnownRole(req.Role) {
		return ErrUnknownRole
	}

	user := &model.User{
		ID:       req.UserID,
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		ImageURL: req.ImageURL,
	}
	if user.Name == "" {
		user.Name = defaultUserName
	}
	org := &model.Organization{
		ID:   req.OrgID,
		Name: OrganizationName(req.OrgSlug),
		Slug: req.OrgSlug,
	}
	if org.Slug == "" {
		org.Slug = req.OrgID
	}

	if err := s.store.SyncMember(ctx, user, org, req.Role); err != nil {
		return err
	}
	s.logger.Debug("member synced",
		zap.String("user_id", req.UserID),
		zap.String("organization_id", req.OrgID),
		zap.String("role", req.Role),
	)
	return nil
}

func (s *service) Me(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.FindUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *service) Organization(ctx context.Context, orgID string) (*model.Organization, error) {
	o, err := s.store.FindByID(ctx, orgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return o, err
}

func (s *service) Members(ctx context.Context, orgID string) ([]model.Member, error) {
	return s.store.ListMembers(ctx, orgID)
}

// OrganizationName derives a display name from a slug: "acme-corp" becomes
// "Acme Corp". An empty slug yields "My Organization".
func OrganizationName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	if len(words) == 0 {
		return defaultOrganizationName
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
