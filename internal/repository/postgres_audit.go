package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterlianpi/pcore-auth/internal/domain"
)

var _ AuditRepository = (*PostgresAuditRepo)(nil)

// PostgresAuditRepo implements AuditRepository.
type PostgresAuditRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAuditRepo(pool *pgxpool.Pool) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: pool}
}

func (r *PostgresAuditRepo) AppendLog(ctx context.Context, entry domain.UpdateLog) error {
	if _, err := r.db.Exec(ctx, `
INSERT INTO update_logs (id, org_id, name, message, updated_by, type)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.OrgID, entry.Name, entry.Message, entry.UpdatedBy, entry.Type,
	); err != nil {
		return mapErr("append update log", err)
	}
	return nil
}

// FindWebhooks returns active settings matching the event's org and user,
// ordered so superadmin-scoped settings come first, then org, then user.
func (r *PostgresAuditRepo) FindWebhooks(ctx context.Context, orgID, userID *int64) ([]domain.NotifierSetting, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, scope, org_id, user_id, webhook_url, active, created_at
FROM notifier_settings
WHERE active AND (
	scope = 'SUPERADMIN'
	OR (scope = 'ORG' AND org_id = $1)
	OR (scope = 'USER' AND user_id = $2)
)
ORDER BY CASE scope WHEN 'SUPERADMIN' THEN 0 WHEN 'ORG' THEN 1 ELSE 2 END`,
		orgID, userID,
	)
	if err != nil {
		return nil, mapErr("find webhooks", err)
	}
	defer rows.Close()

	var settings []domain.NotifierSetting
	for rows.Next() {
		var (
			s     domain.NotifierSetting
			scope string
		)
		if err := rows.Scan(&s.ID, &scope, &s.OrgID, &s.UserID, &s.WebhookURL, &s.Active, &s.CreatedAt); err != nil {
			return nil, mapErr("scan webhook setting", err)
		}
		s.Scope = domain.NotifierScope(scope)
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("find webhooks", err)
	}
	return settings, nil
}
