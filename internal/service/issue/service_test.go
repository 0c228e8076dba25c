package issue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	contracts "scrumboard/contracts/mq"
	"scrumboard/internal/model"
	"scrumboard/internal/repository"
	"scrumboard/pkg/outbox"
	"scrumboard/pkg/rbac"
)

var (
	projectID = uuid.NewString()
	sprintID  = uuid.NewString()
	todo      = uuid.NewString()
	done      = uuid.NewString()

	reporter = rbac.Principal{UserID: "user_reporter", OrganizationID: "org_1", Role: rbac.RoleMember}
	peer     = rbac.Principal{UserID: "user_peer", OrganizationID: "org_1", Role: rbac.RoleMember}
	admin    = rbac.Principal{UserID: "user_admin", OrganizationID: "org_1", Role: rbac.RoleAdmin}
)

// fakeStore appends issues per (sprint, status) like the database does.
type fakeStore struct {
	issues map[string]*model.Issue
	events []*outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{issues: map[string]*model.Issue{}}
}

func (f *fakeStore) next(sprint, status string) int {
	n := 0
	for _, i := range f.issues {
		if i.SprintID == sprint && i.StatusID == status && i.Order >= n {
			n = i.Order + 1
		}
	}
	return n
}

func (f *fakeStore) record(fn repository.EventFunc[model.Issue], i *model.Issue) error {
	ev, err := fn(i)
	if err != nil {
		return err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) CreateIssue(_ context.Context, i *model.Issue, event repository.EventFunc[model.Issue]) error {
	i.ID = uuid.NewString()
	i.Order = f.next(i.SprintID, i.StatusID)
	cp := *i
	f.issues[i.ID] = &cp
	return f.record(event, i)
}

func (f *fakeStore) ListBySprint(_ context.Context, sprint string) ([]model.IssueView, error) {
	out := []model.IssueView{}
	for _, i := range f.issues {
		if i.SprintID == sprint {
			out = append(out, model.IssueView{Issue: *i})
		}
	}
	return out, nil
}

func (f *fakeStore) FindByID(_ context.Context, orgID, id string) (*model.Issue, error) {
	i, ok := f.issues[id]
	if !ok || orgID != "org_1" {
		return nil, repository.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (f *fakeStore) UpdateIssue(_ context.Context, orgID, id string, change repository.IssueChange, event repository.EventFunc[model.Issue]) (*model.Issue, error) {
	i, ok := f.issues[id]
	if !ok || orgID != "org_1" {
		return nil, repository.ErrNotFound
	}
	if change.StatusID != nil && *change.StatusID != i.StatusID {
		i.Order = f.next(i.SprintID, *change.StatusID)
		i.StatusID = *change.StatusID
	}
	if change.Priority != nil {
		i.Priority = *change.Priority
	}
	cp := *i
	return &cp, f.record(event, &cp)
}

func (f *fakeStore) DeleteIssue(_ context.Context, i *model.Issue, event repository.EventFunc[model.Issue]) error {
	if _, ok := f.issues[i.ID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.issues, i.ID)
	return f.record(event, i)
}

type projects struct{}

func (projects) FindByID(_ context.Context, orgID, id string) (*model.Project, error) {
	if orgID != "org_1" || id != projectID {
		return nil, repository.ErrNotFound
	}
	return &model.Project{ID: id, OrganizationID: orgID}, nil
}

type sprints struct{}

func (sprints) FindByID(_ context.Context, orgID, id string) (*model.SprintRef, error) {
	if orgID != "org_1" || id != sprintID {
		return nil, repository.ErrNotFound
	}
	return &model.SprintRef{Sprint: model.Sprint{ID: id, ProjectID: projectID, Status: model.SprintActive}, OrganizationID: orgID}, nil
}

type statuses struct{}

func (statuses) FindByID(_ context.Context, orgID, id string) (*model.Status, error) {
	if orgID != "org_1" || (id != todo && id != done) {
		return nil, repository.ErrNotFound
	}
	return &model.Status{ID: id, OrganizationID: orgID}, nil
}

type members map[string]bool

func (m members) IsMember(_ context.Context, _ string, userID string) (bool, error) {
	return m[userID], nil
}

func newTestService(store *fakeStore) Service {
	return NewService(store, Deps{
		Projects: projects{},
		Sprints:  sprints{},
		Statuses: statuses{},
		Members:  members{"user_peer": true},
	}, zap.NewNop())
}

func create(t *testing.T, svc Service, status string) *model.Issue {
	t.Helper()
	issue, err := svc.Create(context.Background(), reporter, projectID, CreateRequest{
		Title:    "Write docs",
		StatusID: status,
		SprintID: sprintID,
	})
	require.NoError(t, err)
	return issue
}

func TestCreate_AppendsAndEmits(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	first := create(t, svc, todo)
	second := create(t, svc, todo)
	other := create(t, svc, done)

	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)
	assert.Equal(t, 0, other.Order)
	assert.Equal(t, model.PriorityMedium, first.Priority, "priority defaults to MEDIUM")
	assert.Equal(t, reporter.UserID, first.ReporterID)

	require.Len(t, store.events, 3)
	var payload contracts.IssueCreatedPayload
	require.NoError(t, json.Unmarshal(store.events[1].Payload, &payload))
	assert.Equal(t, second.ID, payload.IssueID)
	assert.Equal(t, 1, payload.Order)
	assert.Equal(t, contracts.RoutingIssueCreated, store.events[1].RoutingKey)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newFakeStore())
	ghost := "user_ghost"
	empty := ""

	tests := []struct {
		name      string
		projectID string
		req       CreateRequest
		want      error
	}{
		{"empty title", projectID, CreateRequest{Title: " ", StatusID: todo, SprintID: sprintID}, ErrEmptyTitle},
		{"bad priority", projectID, CreateRequest{Title: "t", StatusID: todo, SprintID: sprintID, Priority: "BLOCKER"}, ErrInvalidPriority},
		{"bad project id", "p", CreateRequest{Title: "t", StatusID: todo, SprintID: sprintID}, ErrInvalidProjectID},
		{"unknown project", uuid.NewString(), CreateRequest{Title: "t", StatusID: todo, SprintID: sprintID}, ErrProjectNotFound},
		{"bad sprint id", projectID, CreateRequest{Title: "t", StatusID: todo, SprintID: "s"}, ErrInvalidSprintID},
		{"unknown sprint", projectID, CreateRequest{Title: "t", StatusID: todo, SprintID: uuid.NewString()}, ErrSprintNotFound},
		{"unknown status", projectID, CreateRequest{Title: "t", StatusID: uuid.NewString(), SprintID: sprintID}, ErrUnknownStatus},
		{"assignee not member", projectID, CreateRequest{Title: "t", StatusID: todo, SprintID: sprintID, AssigneeID: &ghost}, ErrAssigneeNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), reporter, tt.projectID, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	issue, err := svc.Create(context.Background(), reporter, projectID, CreateRequest{Title: "t", StatusID: todo, SprintID: sprintID, AssigneeID: &empty})
	require.NoError(t, err)
	assert.Nil(t, issue.AssigneeID, "empty assignee means unassigned")
}

func TestUpdate_StatusChangeAppendsAtEnd(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	create(t, svc, done)
	create(t, svc, done)
	moving := create(t, svc, todo)

	urgent := model.PriorityUrgent
	updated, err := svc.Update(context.Background(), peer, moving.ID, UpdateRequest{StatusID: &done, Priority: &urgent})
	require.NoError(t, err)
	assert.Equal(t, done, updated.StatusID)
	assert.Equal(t, 2, updated.Order)
	assert.Equal(t, model.PriorityUrgent, updated.Priority)

	var payload contracts.IssueUpdatedPayload
	require.NoError(t, json.Unmarshal(store.events[len(store.events)-1].Payload, &payload))
	assert.Equal(t, todo, payload.FromStatusID)
	assert.Equal(t, "MEDIUM", payload.FromPriority)
}

func TestUpdate_Validation(t *testing.T) {
	svc := newTestService(newFakeStore())
	issue := create(t, svc, todo)
	bad := model.Priority("NOW")
	stranger := uuid.NewString()

	_, err := svc.Update(context.Background(), peer, issue.ID, UpdateRequest{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	_, err = svc.Update(context.Background(), peer, issue.ID, UpdateRequest{Priority: &bad})
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = svc.Update(context.Background(), peer, issue.ID, UpdateRequest{StatusID: &stranger})
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = svc.Update(context.Background(), peer, uuid.NewString(), UpdateRequest{StatusID: &done})
	assert.ErrorIs(t, err, ErrIssueNotFound)

	_, err = svc.Update(context.Background(), peer, "x", UpdateRequest{StatusID: &done})
	assert.ErrorIs(t, err, ErrInvalidIssueID)
}

func TestDelete_ReporterOrAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	a := create(t, svc, todo)
	b := create(t, svc, todo)

	assert.ErrorIs(t, svc.Delete(ctx, peer, a.ID), ErrNotReporterOrAdmin)
	assert.NoError(t, svc.Delete(ctx, reporter, a.ID))
	assert.NoError(t, svc.Delete(ctx, admin, b.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, b.ID), ErrIssueNotFound)

	last := store.events[len(store.events)-1]
	assert.Equal(t, contracts.RoutingIssueDeleted, last.RoutingKey)
	assert.Equal(t, b.ID, last.AggregateID)
}

func TestDelete_LeavesGap(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	create(t, svc, todo)
	middle := create(t, svc, todo)
	last := create(t, svc, todo)

	require.NoError(t, svc.Delete(context.Background(), reporter, middle.ID))
	got, err := store.FindByID(context.Background(), "org_1", last.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Order)

	next := create(t, svc, todo)
	assert.Equal(t, 3, next.Order)
}

func TestListBySprint(t *testing.T) {
	svc := newTestService(newFakeStore())
	create(t, svc, todo)

	list, err := svc.ListBySprint(context.Background(), "org_1", sprintID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListBySprint(context.Background(), "org_2", sprintID)
	assert.ErrorIs(t, err, ErrSprintNotFound)
}
