package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
)

type ProjectRepository struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id::text, organization_id, name, key, description, created_at, updated_at`

// CreateProject inserts a project. A key already used in the organization
// yields ErrDuplicateKey.
func (r *ProjectRepository) CreateProject(ctx context.Context, p *model.Project) error {
	query := `
        INSERT INTO projects (organization_id, name, key, description)
        VALUES ($1, $2, $3, $4)
        RETURNING id::text, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, p.OrganizationID, p.Name, p.Key, p.Description).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

// ListByOrganization returns the organization's projects, newest first.
func (r *ProjectRepository) ListByOrganization(ctx context.Context, orgID string) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+projectColumns+`
        FROM projects
        WHERE organization_id = $1
        ORDER BY created_at DESC, id
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// FindByID returns the project when it belongs to orgID.
func (r *ProjectRepository) FindByID(ctx context.Context, orgID, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.QueryRow(ctx, `
        SELECT `+projectColumns+`
        FROM projects
        WHERE id = $1 AND organization_id = $2
    `, id, orgID).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Key, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// DeleteProject removes the project with its sprints and issues.
func (r *ProjectRepository) DeleteProject(ctx context.Context, orgID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
