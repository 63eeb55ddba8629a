package org

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists organizations and members in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed org store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateOrg(ctx context.Context, o *Organization) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.Name, o.Slug, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetOrg(ctx context.Context, id string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, status, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

func (p *PostgresStore) GetOrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	return p.scanOrg(p.db.QueryRowContext(ctx, `
		SELECT id, name, slug, status, created_at, updated_at
		FROM organizations WHERE slug = $1`, slug))
}

func (p *PostgresStore) UpdateOrg(ctx context.Context, o *Organization) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE organizations SET name = $1, status = $2, updated_at = $3
		WHERE id = $4`,
		o.Name, string(o.Status), o.UpdatedAt, o.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrgNotFound
	}
	return nil
}

func (p *PostgresStore) AddMember(ctx context.Context, m *Member) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO members (id, org_id, email, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.OrgID, m.Email, m.Name, string(m.Role), m.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrMemberExists
			case "23503":
				return ErrOrgNotFound
			}
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetMember(ctx context.Context, orgID, memberID string) (*Member, error) {
	m := &Member{}
	var role string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, org_id, email, name, role, created_at
		FROM members WHERE id = $1 AND org_id = $2`, memberID, orgID,
	).Scan(&m.ID, &m.OrgID, &m.Email, &m.Name, &role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Role = Role(role)
	return m, nil
}

func (p *PostgresStore) RemoveMember(ctx context.Context, orgID, memberID string) error {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM members WHERE id = $1 AND org_id = $2`, memberID, orgID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (p *PostgresStore) ListMembers(ctx context.Context, orgID string, limit, offset int) ([]*Member, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, org_id, email, name, role, created_at
		FROM members WHERE org_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m := &Member{}
		var role string
		if err := rows.Scan(&m.ID, &m.OrgID, &m.Email, &m.Name, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *PostgresStore) CountMembers(ctx context.Context, orgID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members WHERE org_id = $1`, orgID).Scan(&count)
	return count, err
}

func (p *PostgresStore) scanOrg(row *sql.Row) (*Organization, error) {
	o := &Organization{}
	var status string
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return o, nil
}
