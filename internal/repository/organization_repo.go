package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scrumboard/internal/model"
	"scrumboard/pkg/db"
)

type OrganizationRepository struct {
	db *pgxpool.Pool
}

func NewOrganizationRepository(db *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// SyncMember upserts the user, the organization and the membership role in
// one transaction. The organization name is only set on first insert.
func (r *OrganizationRepository) SyncMember(ctx context.Context, u *model.User, org *model.Organization, role string) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            INSERT INTO users (id, name, email, image_url)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (id) DO UPDATE
            SET name = EXCLUDED.name, email = EXCLUDED.email,
                image_url = EXCLUDED.image_url, updated_at = NOW()
        `, u.ID, u.Name, u.Email, u.ImageURL)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO organizations (id, name, slug)
            VALUES ($1, $2, $3)
            ON CONFLICT (id) DO UPDATE
            SET slug = EXCLUDED.slug, updated_at = NOW()
        `, org.ID, org.Name, org.Slug)
		if err != nil {
			return fmt.Errorf("upsert organization: %w", err)
		}

		_, err = tx.Exec(ctx, `
            INSERT INTO organization_members (organization_id, user_id, role)
            VALUES ($1, $2, $3)
            ON CONFLICT (organization_id, user_id) DO UPDATE
            SET role = EXCLUDED.role, updated_at = NOW()
        `, org.ID, u.ID, role)
		if err != nil {
			return fmt.Errorf("upsert membership: %w", err)
		}
		return nil
	})
}

// FindByID returns the organization.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	query := `
        SELECT id, name, slug, created_at, updated_at
        FROM organizations
        WHERE id = $1
    `
	var o model.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

// FindUser returns a user by identity-provider subject.
func (r *OrganizationRepository) FindUser(ctx context.Context, id string) (*model.User, error) {
	query := `
        SELECT id, name, email, image_url, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.ImageURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// ListMembers returns the organization's members ordered by name.
func (r *OrganizationRepository) ListMembers(ctx context.Context, orgID string) ([]model.Member, error) {
	query := `
        SELECT u.id, u.name, u.email, u.image_url, u.created_at, u.updated_at,
               m.role, m.created_at
        FROM organization_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.organization_id = $1
        ORDER BY u.name, u.id
    `
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Email, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt,
			&m.Role, &m.JoinedAt,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsMember reports whether the user belongs to the organization.
func (r *OrganizationRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2
        )
    `, orgID, userID).Scan(&ok)
	return ok, err
}
