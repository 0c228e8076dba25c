package project

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/repository"
)

type fakeStore struct {
	projects map[string]model.Project
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: map[string]model.Project{}}
}

func (f *fakeStore) CreateProject(_ context.Context, p *model.Project) error {
	for _, existing := range f.projects {
		if existing.OrganizationID == p.OrganizationID && existing.Key == p.Key {
			return repository.ErrDuplicateKey
		}
	}
	p.ID = uuid.NewString()
	f.projects[p.ID] = *p
	return nil
}

func (f *fakeStore) ListByOrganization(_ context.Context, orgID string) ([]model.Project, error) {
	out := []model.Project{}
	for _, p := range f.projects {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, orgID, id string) (*model.Project, error) {
	p, ok := f.projects[id]
	if !ok || p.OrganizationID != orgID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) DeleteProject(_ context.Context, orgID, id string) error {
	p, ok := f.projects[id]
	if !ok || p.OrganizationID != orgID {
		return repository.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

type fakeSprints []model.Sprint

func (f fakeSprints) ListByProject(_ context.Context, projectID string) ([]model.Sprint, error) {
	out := []model.Sprint{}
	for _, s := range f {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newFakeStore(), fakeSprints{}, zap.NewNop())

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"empty name", CreateRequest{Name: "  ", Key: "KEY"}, ErrEmptyName},
		{"long name", CreateRequest{Name: strings.Repeat("n", 101), Key: "KEY"}, ErrNameTooLong},
		{"short key", CreateRequest{Name: "Board", Key: "K"}, ErrKeyTooShort},
		{"long key", CreateRequest{Name: "Board", Key: strings.Repeat("k", 101)}, ErrKeyTooLong},
		{"long description", CreateRequest{Name: "Board", Key: "KEY", Description: strings.Repeat("d", 501)}, ErrDescriptionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "org_1", tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_BoundaryLengths(t *testing.T) {
	svc := NewService(newFakeStore(), fakeSprints{}, zap.NewNop())

	p, err := svc.Create(context.Background(), "org_1", CreateRequest{
		Name:        strings.Repeat("n", 100),
		Key:         "KE",
		Description: strings.Repeat("d", 500),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestCreate_DuplicateKey(t *testing.T) {
	svc := NewService(newFakeStore(), fakeSprints{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "org_1", CreateRequest{Name: "Board", Key: "BRD"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "org_1", CreateRequest{Name: "Other", Key: "BRD"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = svc.Create(ctx, "org_2", CreateRequest{Name: "Other", Key: "BRD"})
	assert.NoError(t, err, "keys are unique per organization")
}

func TestGet_IncludesSprintsAndIsOrgScoped(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	p, err := NewService(store, fakeSprints{}, zap.NewNop()).Create(ctx, "org_1", CreateRequest{Name: "Board", Key: "BRD"})
	require.NoError(t, err)

	svc := NewService(store, fakeSprints{{ID: "s1", ProjectID: p.ID}, {ID: "s2", ProjectID: "other"}}, zap.NewNop())

	detail, err := svc.Get(ctx, "org_1", p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Sprints, 1)
	assert.Equal(t, "s1", detail.Sprints[0].ID)

	_, err = svc.Get(ctx, "org_2", p.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = svc.Get(ctx, "org_1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidProjectID)
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeSprints{}, zap.NewNop())
	ctx := context.Background()

	p, err := svc.Create(ctx, "org_1", CreateRequest{Name: "Board", Key: "BRD"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "org_2", p.ID), ErrProjectNotFound)
	require.NoError(t, svc.Delete(ctx, "org_1", p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "org_1", p.ID), ErrProjectNotFound)

	list, err := svc.List(ctx, "org_1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
