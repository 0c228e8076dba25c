package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
	"scrumboard/pkg/db"
	"scrumboard/pkg/outbox"
)

type SprintRepository struct {
	db *pgxpool.Pool
}

func NewSprintRepository(db *pgxpool.Pool) *SprintRepository {
	return &SprintRepository{db: db}
}

// SprintTransition validates a status change against the locked sprint and
// returns the new status together with the event to record.
type SprintTransition func(s *model.SprintRef) (model.SprintStatus, *outbox.Event, error)

const sprintRefColumns = `s.id::text, s.project_id::text, s.name, s.start_date, s.end_date, s.status,
               s.created_at, s.updated_at, p.organization_id`

func scanSprintRef(row pgx.Row) (*model.SprintRef, error) {
	var s model.SprintRef
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.Name, &s.StartDate, &s.EndDate, &s.Status,
		&s.CreatedAt, &s.UpdatedAt, &s.OrganizationID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// lockSprint reads the sprint and holds its row lock until q commits.
func lockSprint(ctx context.Context, q db.Querier, id string) (*model.SprintRef, error) {
	return scanSprintRef(q.QueryRow(ctx, `
        SELECT `+sprintRefColumns+`
        FROM sprints s
        JOIN projects p ON p.id = s.project_id
        WHERE s.id = $1
        FOR UPDATE OF s
    `, id))
}

// CreateSprint inserts a PLANNED sprint and its creation event.
func (r *SprintRepository) CreateSprint(ctx context.Context, s *model.Sprint, event EventFunc[model.Sprint]) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if s.Status == "" {
			s.Status = model.SprintPlanned
		}
		err := tx.QueryRow(ctx, `
            INSERT INTO sprints (project_id, name, start_date, end_date, status)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id::text, created_at, updated_at
        `, s.ProjectID, s.Name, s.StartDate, s.EndDate, s.Status).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert sprint: %w", mapError(err))
		}
		return recordEvent(ctx, tx, event, s)
	})
}

// ListByProject returns the project's sprints, newest first.
func (r *SprintRepository) ListByProject(ctx context.Context, projectID string) ([]model.Sprint, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id::text, project_id::text, name, start_date, end_date, status, created_at, updated_at
        FROM sprints
        WHERE project_id = $1
        ORDER BY created_at DESC, id
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sprints := []model.Sprint{}
	for rows.Next() {
		var s model.Sprint
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.StartDate, &s.EndDate, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sprints = append(sprints, s)
	}
	return sprints, rows.Err()
}

// FindByID returns the sprint when its project belongs to orgID.
func (r *SprintRepository) FindByID(ctx context.Context, orgID, id string) (*model.SprintRef, error) {
	return scanSprintRef(r.db.QueryRow(ctx, `
        SELECT `+sprintRefColumns+`
        FROM sprints s
        JOIN projects p ON p.id = s.project_id
        WHERE s.id = $1 AND p.organization_id = $2
    `, id, orgID))
}

// UpdateStatus locks the sprint, lets transition decide the new status and
// stores it with the returned event.
func (r *SprintRepository) UpdateStatus(ctx context.Context, orgID, id string, transition SprintTransition) (*model.SprintRef, error) {
	var out *model.SprintRef
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		s, err := lockSprint(ctx, tx, id)
		if err != nil {
			return err
		}
		if s.OrganizationID != orgID {
			return ErrNotFound
		}

		next, event, err := transition(s)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
            UPDATE sprints SET status = $2, updated_at = NOW()
            WHERE id = $1
            RETURNING updated_at
        `, id, next).Scan(&s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update sprint status: %w", err)
		}
		s.Status = next

		if event != nil {
			if err := outbox.InsertEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindOverdue returns ACTIVE sprints whose end date is before now, oldest
// end date first.
func (r *SprintRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]model.SprintRef, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+sprintRefColumns+`
        FROM sprints s
        JOIN projects p ON p.id = s.project_id
        WHERE s.status = 'ACTIVE' AND s.end_date < $1
        ORDER BY s.end_date
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sprints := []model.SprintRef{}
	for rows.Next() {
		s, err := scanSprintRef(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, *s)
	}
	return sprints, rows.Err()
}
