package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/pkg/db"
	"scrumboard/pkg/outbox"
)

// testPool connects to TEST_DATABASE_URL and applies migrations. Tests are
// skipped when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool, zap.NewNop())
	require.NoError(t, err)
	return pool
}

type fixture struct {
	org      model.Organization
	user     model.User
	project  model.Project
	sprint   model.Sprint
	todo     model.Status
	done     model.Status
	issues   *IssueRepository
	sprints  *SprintRepository
	statuses *StatusRepository
}

func newFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	f := &fixture{
		org:      model.Organization{ID: "org_" + suffix, Name: "Acme", Slug: "acme-" + suffix},
		user:     model.User{ID: "user_" + suffix, Name: "Ada", Email: "ada@example.com"},
		issues:   NewIssueRepository(pool),
		sprints:  NewSprintRepository(pool),
		statuses: NewStatusRepository(pool),
	}
	require.NoError(t, NewOrganizationRepository(pool).SyncMember(ctx, &f.user, &f.org, "org:admin"))

	f.project = model.Project{OrganizationID: f.org.ID, Name: "Board", Key: "BRD"}
	require.NoError(t, NewProjectRepository(pool).CreateProject(ctx, &f.project))

	start := time.Now().Add(-24 * time.Hour)
	f.sprint = model.Sprint{ProjectID: f.project.ID, Name: "S1", StartDate: start, EndDate: start.Add(14 * 24 * time.Hour)}
	require.NoError(t, f.sprints.CreateSprint(ctx, &f.sprint, nil))

	f.todo = model.Status{OrganizationID: f.org.ID, Name: "Todo", Key: "TODO"}
	f.done = model.Status{OrganizationID: f.org.ID, Name: "Done", Key: "DONE"}
	require.NoError(t, f.statuses.CreateStatus(ctx, &f.todo))
	require.NoError(t, f.statuses.CreateStatus(ctx, &f.done))
	return f
}

func (f *fixture) createIssue(t *testing.T, title string, status model.Status) model.Issue {
	t.Helper()
	issue := model.Issue{
		Title:      title,
		StatusID:   status.ID,
		Priority:   model.PriorityMedium,
		ProjectID:  f.project.ID,
		SprintID:   f.sprint.ID,
		ReporterID: f.user.ID,
	}
	require.NoError(t, f.issues.CreateIssue(context.Background(), &issue, nil))
	return issue
}

func TestIssueRepository_CreateAppendsToBucket(t *testing.T) {
	f := newFixture(t, testPool(t))

	a := f.createIssue(t, "a", f.todo)
	b := f.createIssue(t, "b", f.todo)
	c := f.createIssue(t, "c", f.done)

	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.Equal(t, 0, c.Order)
}

func TestIssueRepository_ReorderWritesChangedPlacements(t *testing.T) {
	pool := testPool(t)
	f := newFixture(t, pool)
	ctx := context.Background()

	a := f.createIssue(t, "a", f.todo)
	b := f.createIssue(t, "b", f.todo)

	changed, err := f.issues.Reorder(ctx, f.sprint.ID, func(s *model.SprintRef, current []model.Placement) ([]model.Placement, *outbox.Event, error) {
		assert.Equal(t, f.org.ID, s.OrganizationID)
		require.Len(t, current, 2)
		event, err := outbox.NewEvent("issue", b.ID, "issue.reordered", map[string]string{"sprint_id": s.ID})
		return []model.Placement{
			{IssueID: b.ID, StatusID: f.todo.ID, Order: 0},
			{IssueID: a.ID, StatusID: f.todo.ID, Order: 1},
		}, event, err
	})
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	got, err := f.issues.Placements(ctx, f.sprint.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Placement{
		{IssueID: b.ID, StatusID: f.todo.ID, Order: 0},
		{IssueID: a.ID, StatusID: f.todo.ID, Order: 1},
	}, got)

	var events int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE aggregate_id = $1 AND routing_key = 'issue.reordered'`, b.ID,
	).Scan(&events))
	assert.Equal(t, 1, events)
}

func TestIssueRepository_ReorderRollsBackOnDuplicateOrder(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()

	a := f.createIssue(t, "a", f.todo)
	f.createIssue(t, "b", f.todo)

	_, err := f.issues.Reorder(ctx, f.sprint.ID, func(*model.SprintRef, []model.Placement) ([]model.Placement, *outbox.Event, error) {
		return []model.Placement{{IssueID: a.ID, StatusID: f.todo.ID, Order: 1}}, nil, nil
	})
	require.ErrorIs(t, err, ErrOrderConflict)

	got, err := f.issues.FindByID(ctx, f.org.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)
}

func TestIssueRepository_ReorderUnknownIssueRollsBack(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()

	a := f.createIssue(t, "a", f.todo)

	_, err := f.issues.Reorder(ctx, f.sprint.ID, func(*model.SprintRef, []model.Placement) ([]model.Placement, *outbox.Event, error) {
		return []model.Placement{
			{IssueID: a.ID, StatusID: f.done.ID, Order: 0},
			{IssueID: uuid.NewString(), StatusID: f.todo.ID, Order: 0},
		}, nil, nil
	})
	require.ErrorIs(t, err, ErrStaleIssue)

	got, err := f.issues.FindByID(ctx, f.org.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, f.todo.ID, got.StatusID)
}

func TestIssueRepository_ReorderPlanErrorWritesNothing(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()
	a := f.createIssue(t, "a", f.todo)

	planErr := errors.New("sprint not started")
	_, err := f.issues.Reorder(ctx, f.sprint.ID, func(*model.SprintRef, []model.Placement) ([]model.Placement, *outbox.Event, error) {
		return nil, nil, planErr
	})
	require.ErrorIs(t, err, planErr)

	got, err := f.issues.FindByID(ctx, f.org.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order)
}

func TestIssueRepository_UpdateStatusAppendsAtEnd(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()

	f.createIssue(t, "done-0", f.done)
	a := f.createIssue(t, "a", f.todo)

	updated, err := f.issues.UpdateIssue(ctx, f.org.ID, a.ID, IssueChange{StatusID: &f.done.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, f.done.ID, updated.StatusID)
	assert.Equal(t, 1, updated.Order)
}

func TestStatusRepository_DeleteInUse(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()
	f.createIssue(t, "a", f.todo)

	err := f.statuses.DeleteStatus(ctx, f.org.ID, f.todo.ID)
	assert.ErrorIs(t, err, ErrInUse)

	err = f.statuses.DeleteStatus(ctx, f.org.ID, f.done.ID)
	assert.NoError(t, err)
}

func TestProjectRepository_DuplicateKey(t *testing.T) {
	pool := testPool(t)
	f := newFixture(t, pool)

	dup := model.Project{OrganizationID: f.org.ID, Name: "Other", Key: f.project.Key}
	err := NewProjectRepository(pool).CreateProject(context.Background(), &dup)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestSprintRepository_FindOverdue(t *testing.T) {
	f := newFixture(t, testPool(t))
	ctx := context.Background()

	_, err := f.sprints.UpdateStatus(ctx, f.org.ID, f.sprint.ID, func(*model.SprintRef) (model.SprintStatus, *outbox.Event, error) {
		return model.SprintActive, nil, nil
	})
	require.NoError(t, err)

	overdue, err := f.sprints.FindOverdue(ctx, f.sprint.EndDate.Add(time.Hour), 1000)
	require.NoError(t, err)

	var found bool
	for _, s := range overdue {
		if s.ID == f.sprint.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestActivityRepository_InsertIsIdempotent(t *testing.T) {
	pool := testPool(t)
	f := newFixture(t, pool)
	repo := NewActivityRepository(pool)
	ctx := context.Background()

	a := model.Activity{
		EventID:        uuid.NewString(),
		OrganizationID: f.org.ID,
		SprintID:       &f.sprint.ID,
		Kind:           "sprint.created",
		Message:        "created",
		OccurredAt:     time.Now(),
	}
	inserted, err := repo.InsertActivity(ctx, &a)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := a
	inserted, err = repo.InsertActivity(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestMapError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "no rows", in: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: ErrNotFound},
		{name: "bucket order", in: &pgconn.PgError{Code: "23505", ConstraintName: "issues_bucket_order_unique"}, want: ErrOrderConflict},
		{name: "project key", in: &pgconn.PgError{Code: "23505", ConstraintName: "projects_organization_id_key_key"}, want: ErrDuplicateKey},
		{name: "other", in: other, want: other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapError(tt.in))
		})
	}
}
