package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
)

type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// InsertActivity stores one activity row per event id. It reports false when
// the event was already recorded.
func (r *ActivityRepository) InsertActivity(ctx context.Context, a *model.Activity) (bool, error) {
	query := `
        INSERT INTO activity_log (event_id, organization_id, project_id, sprint_id, issue_id,
                                  kind, message, actor_id, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (event_id) DO NOTHING
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		a.EventID,
		a.OrganizationID,
		a.ProjectID,
		a.SprintID,
		a.IssueID,
		a.Kind,
		a.Message,
		a.ActorID,
		a.OccurredAt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if err = mapError(err); err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListBySprint returns the sprint's most recent activity first.
func (r *ActivityRepository) ListBySprint(ctx context.Context, sprintID string, limit int) ([]model.Activity, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, event_id::text, organization_id, project_id::text, sprint_id::text, issue_id::text,
               kind, message, actor_id, occurred_at, created_at
        FROM activity_log
        WHERE sprint_id = $1
        ORDER BY occurred_at DESC, id DESC
        LIMIT $2
    `, sprintID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(
			&a.ID, &a.EventID, &a.OrganizationID, &a.ProjectID, &a.SprintID, &a.IssueID,
			&a.Kind, &a.Message, &a.ActorID, &a.OccurredAt, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
