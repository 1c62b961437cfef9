package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

var (
	_ TokenRepository        = (*PostgresTokenRepo)(nil)
	_ ConfirmationRepository = (*PostgresConfirmationRepo)(nil)
	_ KeyRepository          = (*PostgresKeyRepo)(nil)
)

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool}
}

const tokenColumns = `id, purpose, email, token, expires_at, created_at`

// Replace deletes any prior token for (purpose, email) and inserts the new
// one in a single transaction, so two concurrent issuances cannot leave two
// live tokens behind.
func (r *PostgresTokenRepo) Replace(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.AuthToken{}, mapErr("replace token begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM auth_tokens WHERE purpose = $1 AND email = $2`, string(token.Purpose), token.Email); err != nil {
		return domain.AuthToken{}, mapErr("delete prior token", err)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO auth_tokens (id, purpose, email, token, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+tokenColumns,
		token.ID, string(token.Purpose), token.Email, token.Token, token.ExpiresAt,
	)
	created, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, mapErr("insert token", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.AuthToken{}, mapErr("replace token commit", err)
	}
	return created, nil
}

func (r *PostgresTokenRepo) GetByEmail(ctx context.Context, purpose domain.TokenPurpose, email string) (domain.AuthToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE purpose = $1 AND email = $2`, string(purpose), email)
	token, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, mapErr("get token", err)
	}
	return token, nil
}

func (r *PostgresTokenRepo) GetByToken(ctx context.Context, purpose domain.TokenPurpose, value string) (domain.AuthToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE purpose = $1 AND token = $2`, string(purpose), value)
	token, err := scanToken(row)
	if err != nil {
		return domain.AuthToken{}, mapErr("get token by value", err)
	}
	return token, nil
}

func (r *PostgresTokenRepo) Delete(ctx context.Context, tokenID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM auth_tokens WHERE id = $1`, tokenID); err != nil {
		return mapErr("delete token", err)
	}
	return nil
}

func scanToken(row pgx.Row) (domain.AuthToken, error) {
	var (
		t       domain.AuthToken
		purpose string
	)
	if err := row.Scan(&t.ID, &purpose, &t.Email, &t.Token, &t.ExpiresAt, &t.CreatedAt); err != nil {
		return domain.AuthToken{}, err
	}
	t.Purpose = domain.TokenPurpose(purpose)
	return t, nil
}

// PostgresConfirmationRepo implements ConfirmationRepository.
type PostgresConfirmationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresConfirmationRepo(pool *pgxpool.Pool) *PostgresConfirmationRepo {
	return &PostgresConfirmationRepo{db: pool}
}

// Replace drops any outstanding confirmation for the user before creating
// the new one; a user holds at most one.
func (r *PostgresConfirmationRepo) Replace(ctx context.Context, confirmation domain.TwoFactorConfirmation) (domain.TwoFactorConfirmation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.TwoFactorConfirmation{}, mapErr("replace confirmation begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_confirmations WHERE user_id = $1`, confirmation.UserID); err != nil {
		return domain.TwoFactorConfirmation{}, mapErr("delete prior confirmation", err)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO two_factor_confirmations (id, user_id)
VALUES ($1, $2)
RETURNING id, user_id, created_at`,
		confirmation.ID, confirmation.UserID,
	)
	var created domain.TwoFactorConfirmation
	if err := row.Scan(&created.ID, &created.UserID, &created.CreatedAt); err != nil {
		return domain.TwoFactorConfirmation{}, mapErr("insert confirmation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.TwoFactorConfirmation{}, mapErr("replace confirmation commit", err)
	}
	return created, nil
}

// Consume deletes the confirmation, failing with NotFound when none exists.
// Delete-and-check makes the consumption single-use under concurrency.
func (r *PostgresConfirmationRepo) Consume(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM two_factor_confirmations WHERE user_id = $1`, userID)
	if err != nil {
		return mapErr("consume confirmation", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consume confirmation: %w", autherr.ErrNotFound)
	}
	return nil
}

// PostgresKeyRepo implements KeyRepository.
type PostgresKeyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepo(pool *pgxpool.Pool) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: pool}
}

const keyColumns = `id, kid, secret, algorithm, active, created_at, rotated_at`

func (r *PostgresKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	row := r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM signing_keys WHERE active ORDER BY created_at DESC LIMIT 1`)
	var key domain.SigningKey
	if err := row.Scan(&key.ID, &key.KID, &key.Secret, &key.Algorithm, &key.Active, &key.CreatedAt, &key.RotatedAt); err != nil {
		return domain.SigningKey{}, mapErr("get active key", err)
	}
	return key, nil
}

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO signing_keys (id, kid, secret, algorithm, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+keyColumns,
		key.ID, key.KID, key.Secret, key.Algorithm, key.Active,
	)
	var created domain.SigningKey
	if err := row.Scan(&created.ID, &created.KID, &created.Secret, &created.Algorithm, &created.Active, &created.CreatedAt, &created.RotatedAt); err != nil {
		return domain.SigningKey{}, mapErr("create key", err)
	}
	return created, nil
}
