package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

var _ OrgRepository = (*PostgresOrgRepo)(nil)

// PostgresOrgRepo implements OrgRepository.
type PostgresOrgRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOrgRepo(pool *pgxpool.Pool) *PostgresOrgRepo {
	return &PostgresOrgRepo{db: pool}
}

const membershipColumns = `id, user_id, org_id, role, status, joined_at, removed_at`

// CreateOrg inserts the organization and its owner membership in one
// transaction so an org can never exist without an owner.
func (r *PostgresOrgRepo) CreateOrg(ctx context.Context, org domain.Organization, owner domain.Membership) (domain.Organization, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.Organization{}, mapErr("create org begin", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
INSERT INTO organizations (id, name, type, created_by)
VALUES ($1, $2, $3, $4)
RETURNING id, name, type, created_by, created_at`,
		org.ID, org.Name, string(org.Type), org.CreatedBy,
	)
	created, err := scanOrg(row)
	if err != nil {
		return domain.Organization{}, mapErr("create org", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO memberships (id, user_id, org_id, role, status)
VALUES ($1, $2, $3, $4, $5)`,
		owner.ID, owner.UserID, created.ID, string(owner.Role), string(owner.Status),
	); err != nil {
		return domain.Organization{}, mapErr("create owner membership", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Organization{}, mapErr("create org commit", err)
	}
	return created, nil
}

func (r *PostgresOrgRepo) GetOrg(ctx context.Context, orgID int64) (domain.Organization, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, type, created_by, created_at FROM organizations WHERE id = $1`, orgID)
	org, err := scanOrg(row)
	if err != nil {
		return domain.Organization{}, mapErr("get org", err)
	}
	return org, nil
}

func (r *PostgresOrgRepo) GetMembership(ctx context.Context, userID, orgID int64) (domain.Membership, error) {
	row := r.db.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	m, err := scanMembership(row)
	if err != nil {
		return domain.Membership{}, mapErr("get membership", err)
	}
	return m, nil
}

func (r *PostgresOrgRepo) ListMembers(ctx context.Context, orgID int64) ([]domain.Membership, error) {
	rows, err := r.db.Query(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY joined_at`, orgID)
	if err != nil {
		return nil, mapErr("list members", err)
	}
	defer rows.Close()

	var members []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, mapErr("scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list members", err)
	}
	return members, nil
}

func (r *PostgresOrgRepo) CreateMembership(ctx context.Context, membership domain.Membership) (domain.Membership, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO memberships (id, user_id, org_id, role, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+membershipColumns,
		membership.ID, membership.UserID, membership.OrgID, string(membership.Role), string(membership.Status),
	)
	created, err := scanMembership(row)
	if err != nil {
		return domain.Membership{}, mapErr("create membership", err)
	}
	return created, nil
}

func (r *PostgresOrgRepo) UpdateMembershipRole(ctx context.Context, userID, orgID int64, role domain.OrgRole) error {
	tag, err := r.db.Exec(ctx, `UPDATE memberships SET role = $3 WHERE user_id = $1 AND org_id = $2`, userID, orgID, string(role))
	if err != nil {
		return mapErr("update membership role", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update membership role: %w", autherr.ErrNotFound)
	}
	return nil
}

// RemoveMembership flips status to REMOVED; the row stays as history.
func (r *PostgresOrgRepo) RemoveMembership(ctx context.Context, userID, orgID int64) error {
	tag, err := r.db.Exec(ctx, `
UPDATE memberships SET status = $3, removed_at = now()
WHERE user_id = $1 AND org_id = $2 AND status = $4`,
		userID, orgID, string(domain.MembershipRemoved), string(domain.MembershipActive),
	)
	if err != nil {
		return mapErr("remove membership", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove membership: %w", autherr.ErrNotFound)
	}
	return nil
}

// ReactivateMembership flips a REMOVED membership back to ACTIVE with the
// given role. The original joined_at survives; only removed_at is cleared.
func (r *PostgresOrgRepo) ReactivateMembership(ctx context.Context, userID, orgID int64, role domain.OrgRole) error {
	tag, err := r.db.Exec(ctx, `
UPDATE memberships SET role = $3, status = $4, removed_at = NULL
WHERE user_id = $1 AND org_id = $2 AND status = $5`,
		userID, orgID, string(role), string(domain.MembershipActive), string(domain.MembershipRemoved),
	)
	if err != nil {
		return mapErr("reactivate membership", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reactivate membership: %w", autherr.ErrNotFound)
	}
	return nil
}

func scanOrg(row pgx.Row) (domain.Organization, error) {
	var (
		o       domain.Organization
		orgType string
	)
	if err := row.Scan(&o.ID, &o.Name, &orgType, &o.CreatedBy, &o.CreatedAt); err != nil {
		return domain.Organization{}, err
	}
	o.Type = domain.OrgType(orgType)
	return o, nil
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var (
		m      domain.Membership
		role   string
		status string
	)
	if err := row.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &status, &m.JoinedAt, &m.RemovedAt); err != nil {
		return domain.Membership{}, err
	}
	m.Role = domain.OrgRole(role)
	m.Status = domain.MembershipStatus(status)
	return m, nil
}
