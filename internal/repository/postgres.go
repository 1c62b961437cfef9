package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository    = (*PostgresUserRepo)(nil)
	_ AccountRepository = (*PostgresAccountRepo)(nil)
)

const uniqueViolation = "23505"

// mapErr translates pgx failures into the access-layer taxonomy. Raw driver
// text is sanitized so schema details never reach callers.
func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, autherr.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, autherr.ErrDuplicateResource)
	}
	return fmt.Errorf("%s: %s", op, autherr.Sanitize(err.Error()))
}

// PostgresUserRepo implements UserRepository with raw pgx queries.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, email, password_hash, name, avatar_url, role, two_factor_enabled, default_org_id, email_verified_at, created_at, updated_at`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr("get user by email", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr("get user by id", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO users (id, email, password_hash, name, avatar_url, role, two_factor_enabled, default_org_id, email_verified_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+userColumns,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.AvatarURL,
		string(user.Role),
		user.TwoFactorEnabled,
		user.DefaultOrgID,
		user.EmailVerifiedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapErr("create user", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return mapErr("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password: %w", autherr.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) MarkEmailVerified(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email_verified_at = now(), updated_at = now() WHERE id = $1`, userID)
	if err != nil {
		return mapErr("mark email verified", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark email verified: %w", autherr.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) SetDefaultOrg(ctx context.Context, userID, orgID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET default_org_id = $2, updated_at = now() WHERE id = $1`, userID, orgID)
	if err != nil {
		return mapErr("set default org", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set default org: %w", autherr.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.AvatarURL,
		&role,
		&u.TwoFactorEnabled,
		&u.DefaultOrgID,
		&u.EmailVerifiedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

// PostgresAccountRepo implements AccountRepository.
type PostgresAccountRepo struct {
	db *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: pool}
}

const accountColumns = `id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at`

func (r *PostgresAccountRepo) GetByProviderID(ctx context.Context, provider, providerAccountID string) (domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE provider = $1 AND provider_account_id = $2`, provider, providerAccountID)
	account, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapErr("get account", err)
	}
	return account, nil
}

func (r *PostgresAccountRepo) ExistsForUser(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, mapErr("account exists", err)
	}
	return exists, nil
}

func (r *PostgresAccountRepo) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+accountColumns,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
	)
	created, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapErr("create account", err)
	}
	return created, nil
}

func (r *PostgresAccountRepo) UpdateTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error {
	if _, err := r.db.Exec(ctx, `UPDATE accounts SET access_token = $2, refresh_token = $3 WHERE id = $1`, accountID, accessToken, refreshToken); err != nil {
		return mapErr("update account tokens", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a         domain.Account
		expiresAt *time.Time
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.ProviderAccountID,
		&a.AccessToken,
		&a.RefreshToken,
		&expiresAt,
		&a.CreatedAt,
	); err != nil {
		return domain.Account{}, err
	}
	a.ExpiresAt = expiresAt
	return a, nil
}
