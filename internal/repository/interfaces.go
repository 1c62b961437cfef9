package repository

import (
	"context"

	"github.com/peterlianpi/pcore-auth/internal/domain"
)

// UserRepository exposes persistence for platform users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID int64) error
	SetDefaultOrg(ctx context.Context, userID, orgID int64) error
}

// AccountRepository stores linked OAuth identities.
type AccountRepository interface {
	GetByProviderID(ctx context.Context, provider, providerAccountID string) (domain.Account, error)
	ExistsForUser(ctx context.Context, userID int64) (bool, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	UpdateTokens(ctx context.Context, accountID int64, accessToken, refreshToken string) error
}

// TokenRepository persists single-use auth tokens. Replace enforces the
// at-most-one-live-token invariant per (purpose, email) atomically.
type TokenRepository interface {
	Replace(ctx context.Context, token domain.AuthToken) (domain.AuthToken, error)
	GetByEmail(ctx context.Context, purpose domain.TokenPurpose, email string) (domain.AuthToken, error)
	GetByToken(ctx context.Context, purpose domain.TokenPurpose, token string) (domain.AuthToken, error)
	Delete(ctx context.Context, tokenID int64) error
}

// ConfirmationRepository manages single-use two-factor confirmations.
type ConfirmationRepository interface {
	Replace(ctx context.Context, confirmation domain.TwoFactorConfirmation) (domain.TwoFactorConfirmation, error)
	Consume(ctx context.Context, userID int64) error
}

// OrgRepository exposes organizations and tenant memberships.
type OrgRepository interface {
	CreateOrg(ctx context.Context, org domain.Organization, owner domain.Membership) (domain.Organization, error)
	GetOrg(ctx context.Context, orgID int64) (domain.Organization, error)
	GetMembership(ctx context.Context, userID, orgID int64) (domain.Membership, error)
	ListMembers(ctx context.Context, orgID int64) ([]domain.Membership, error)
	CreateMembership(ctx context.Context, membership domain.Membership) (domain.Membership, error)
	UpdateMembershipRole(ctx context.Context, userID, orgID int64, role domain.OrgRole) error
	RemoveMembership(ctx context.Context, userID, orgID int64) error
	ReactivateMembership(ctx context.Context, userID, orgID int64, role domain.OrgRole) error
}

// AuditRepository appends update logs and resolves webhook settings.
type AuditRepository interface {
	AppendLog(ctx context.Context, entry domain.UpdateLog) error
	FindWebhooks(ctx context.Context, orgID, userID *int64) ([]domain.NotifierSetting, error)
}

// KeyRepository stores session signing keys.
type KeyRepository interface {
	GetActiveKey(ctx context.Context) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}
