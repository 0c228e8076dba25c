package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
	"scrumboard/pkg/db"
	"scrumboard/pkg/outbox"
)

type IssueRepository struct {
	db *pgxpool.Pool
}

func NewIssueRepository(db *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{db: db}
}

// IssueChange lists the fields an update may set; nil fields are kept.
type IssueChange struct {
	StatusID *string
	Priority *model.Priority
}

// ReorderPlan computes the placements to write for a locked sprint from its
// current placements. It returns only the placements that changed and the
// event to record; returning an error aborts the transaction.
type ReorderPlan func(sprint *model.SprintRef, current []model.Placement) ([]model.Placement, *outbox.Event, error)

const issueColumns = `i.id::text, i.title, i.description, i.status_id::text, i."order", i.priority,
               i.project_id::text, i.sprint_id::text, i.reporter_id, i.assignee_id,
               i.created_at, i.updated_at`

func scanIssue(row pgx.Row) (*model.Issue, error) {
	var i model.Issue
	err := row.Scan(
		&i.ID, &i.Title, &i.Description, &i.StatusID, &i.Order, &i.Priority,
		&i.ProjectID, &i.SprintID, &i.ReporterID, &i.AssigneeID,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &i, nil
}

// nextOrder returns the position after the last issue of the bucket, or 0
// when the bucket is empty.
func nextOrder(ctx context.Context, q db.Querier, sprintID, statusID string) (int, error) {
	var order int
	err := q.QueryRow(ctx, `
        SELECT COALESCE(MAX("order") + 1, 0)
        FROM issues
        WHERE sprint_id = $1 AND status_id = $2
    `, sprintID, statusID).Scan(&order)
	return order, err
}

// CreateIssue appends the issue at the end of its (sprint, status) bucket.
// The sprint row is locked so concurrent creates get distinct orders.
func (r *IssueRepository) CreateIssue(ctx context.Context, issue *model.Issue, event EventFunc[model.Issue]) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		sprint, err := lockSprint(ctx, tx, issue.SprintID)
		if err != nil {
			return err
		}
		if sprint.ProjectID != issue.ProjectID {
			return ErrNotFound
		}

		order, err := nextOrder(ctx, tx, issue.SprintID, issue.StatusID)
		if err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		issue.Order = order

		err = tx.QueryRow(ctx, `
            INSERT INTO issues (title, description, status_id, "order", priority,
                                project_id, sprint_id, reporter_id, assignee_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            RETURNING id::text, created_at, updated_at
        `,
			issue.Title,
			issue.Description,
			issue.StatusID,
			issue.Order,
			issue.Priority,
			issue.ProjectID,
			issue.SprintID,
			issue.ReporterID,
			issue.AssigneeID,
		).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert issue: %w", mapError(err))
		}
		return recordEvent(ctx, tx, event, issue)
	})
}

// ListBySprint returns the sprint's issues with reporter and assignee,
// ordered by status then order.
func (r *IssueRepository) ListBySprint(ctx context.Context, sprintID string) ([]model.IssueView, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+issueColumns+`,
               rp.id, rp.name, rp.email, rp.image_url,
               a.id, a.name, a.email, a.image_url
        FROM issues i
        JOIN users rp ON rp.id = i.reporter_id
        LEFT JOIN users a ON a.id = i.assignee_id
        WHERE i.sprint_id = $1
        ORDER BY i.status_id, i."order", i.id
    `, sprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []model.IssueView{}
	for rows.Next() {
		var v model.IssueView
		var reporter model.User
		var aID, aName, aEmail, aImage *string
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.StatusID, &v.Order, &v.Priority,
			&v.ProjectID, &v.SprintID, &v.ReporterID, &v.AssigneeID,
			&v.CreatedAt, &v.UpdatedAt,
			&reporter.ID, &reporter.Name, &reporter.Email, &reporter.ImageURL,
			&aID, &aName, &aEmail, &aImage,
		); err != nil {
			return nil, err
		}
		v.Reporter = &reporter
		if aID != nil {
			v.Assignee = &model.User{ID: *aID, Name: deref(aName), Email: deref(aEmail), ImageURL: deref(aImage)}
		}
		issues = append(issues, v)
	}
	return issues, rows.Err()
}

// FindByID returns the issue when its project belongs to orgID.
func (r *IssueRepository) FindByID(ctx context.Context, orgID, id string) (*model.Issue, error) {
	return r.findIssue(ctx, r.db, orgID, id)
}

// UpdateIssue applies change to the issue. A status change appends the issue
// at the end of the destination bucket and leaves a gap in the source bucket.
func (r *IssueRepository) UpdateIssue(ctx context.Context, orgID, id string, change IssueChange, event EventFunc[model.Issue]) (*model.Issue, error) {
	var out *model.Issue
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		current, err := r.findIssue(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if _, err := lockSprint(ctx, tx, current.SprintID); err != nil {
			return err
		}

		statusID, order := current.StatusID, current.Order
		if change.StatusID != nil && *change.StatusID != current.StatusID {
			statusID = *change.StatusID
			if order, err = nextOrder(ctx, tx, current.SprintID, statusID); err != nil {
				return fmt.Errorf("next order: %w", err)
			}
		}
		priority := current.Priority
		if change.Priority != nil {
			priority = *change.Priority
		}

		updated, err := scanIssue(tx.QueryRow(ctx, `
            UPDATE issues i
            SET status_id = $2, "order" = $3, priority = $4, updated_at = NOW()
            WHERE i.id = $1
            RETURNING `+issueColumns,
			id, statusID, order, priority,
		))
		if err != nil {
			return fmt.Errorf("update issue: %w", err)
		}
		if err := recordEvent(ctx, tx, event, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteIssue removes the issue without renumbering its bucket.
func (r *IssueRepository) DeleteIssue(ctx context.Context, issue *model.Issue, event EventFunc[model.Issue]) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM issues WHERE id = $1`, issue.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return recordEvent(ctx, tx, event, issue)
	})
}

// Placements returns the sprint's (issue, status, order) triples sorted by
// status, order and id.
func (r *IssueRepository) Placements(ctx context.Context, sprintID string) ([]model.Placement, error) {
	return placements(ctx, r.db, sprintID)
}

func placements(ctx context.Context, q db.Querier, sprintID string) ([]model.Placement, error) {
	rows, err := q.Query(ctx, `
        SELECT id::text, status_id::text, "order"
        FROM issues
        WHERE sprint_id = $1
        ORDER BY status_id, "order", id
    `, sprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Placement{}
	for rows.Next() {
		var p model.Placement
		if err := rows.Scan(&p.IssueID, &p.StatusID, &p.Order); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reorder locks the sprint, reads its placements and writes the placements
// returned by plan in one batch, together with the plan's event. Either all
// placements are written or none is.
func (r *IssueRepository) Reorder(ctx context.Context, sprintID string, plan ReorderPlan) ([]model.Placement, error) {
	var changed []model.Placement
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		sprint, err := lockSprint(ctx, tx, sprintID)
		if err != nil {
			return err
		}
		current, err := placements(ctx, tx, sprintID)
		if err != nil {
			return fmt.Errorf("load placements: %w", err)
		}

		var event *outbox.Event
		changed, event, err = plan(sprint, current)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}

		if err := writePlacements(ctx, tx, sprintID, changed); err != nil {
			return err
		}
		if event != nil {
			return outbox.InsertEvent(ctx, tx, event)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return changed, nil
}

func writePlacements(ctx context.Context, tx pgx.Tx, sprintID string, changed []model.Placement) error {
	batch := &pgx.Batch{}
	for _, p := range changed {
		batch.Queue(`
            UPDATE issues SET status_id = $2, "order" = $3, updated_at = NOW()
            WHERE id = $1 AND sprint_id = $4
        `, p.IssueID, p.StatusID, p.Order, sprintID)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range changed {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return fmt.Errorf("write placement: %w", mapError(err))
		}
		if tag.RowsAffected() != 1 {
			_ = br.Close()
			return fmt.Errorf("%w: %s", ErrStaleIssue, changed[i].IssueID)
		}
	}
	return br.Close()
}

func (r *IssueRepository) findIssue(ctx context.Context, q db.Querier, orgID, id string) (*model.Issue, error) {
	return scanIssue(q.QueryRow(ctx, `
        SELECT `+issueColumns+`
        FROM issues i
        JOIN projects p ON p.id = i.project_id
        WHERE i.id = $1 AND p.organization_id = $2
    `, id, orgID))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
