package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
	"scrumboard/pkg/db"
)

type StatusRepository struct {
	db *pgxpool.Pool
}

func NewStatusRepository(db *pgxpool.Pool) *StatusRepository {
	return &StatusRepository{db: db}
}

// ListByOrganization returns the organization's board columns in creation order.
func (r *StatusRepository) ListByOrganization(ctx context.Context, orgID string) ([]model.Status, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id::text, organization_id, name, key, created_at, updated_at
        FROM statuses
        WHERE organization_id = $1
        ORDER BY created_at, id
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := []model.Status{}
	for rows.Next() {
		var s model.Status
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Key, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func (r *StatusRepository) FindByID(ctx context.Context, orgID, id string) (*model.Status, error) {
	var s model.Status
	err := r.db.QueryRow(ctx, `
        SELECT id::text, organization_id, name, key, created_at, updated_at
        FROM statuses
        WHERE id = $1 AND organization_id = $2
    `, id, orgID).Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Key, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r *StatusRepository) CreateStatus(ctx context.Context, s *model.Status) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO statuses (organization_id, name, key)
        VALUES ($1, $2, $3)
        RETURNING id::text, created_at, updated_at
    `, s.OrganizationID, s.Name, s.Key).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return mapError(err)
}

// UpdateStatus changes name and/or key; nil fields keep their value.
func (r *StatusRepository) UpdateStatus(ctx context.Context, orgID, id string, name, key *string) (*model.Status, error) {
	var s model.Status
	err := r.db.QueryRow(ctx, `
        UPDATE statuses
        SET name = COALESCE($3, name), key = COALESCE($4, key), updated_at = NOW()
        WHERE id = $1 AND organization_id = $2
        RETURNING id::text, organization_id, name, key, created_at, updated_at
    `, id, orgID, name, key).Scan(&s.ID, &s.OrganizationID, &s.Name, &s.Key, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// DeleteStatus removes a column. A column still holding issues yields ErrInUse.
func (r *StatusRepository) DeleteStatus(ctx context.Context, orgID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM statuses WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
