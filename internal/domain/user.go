package domain

import "time"

// Role is the platform-level role of a user, independent of any org.
type Role string

const (
	RoleUser       Role = "USER"
	RoleManager    Role = "MANAGER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperadmin Role = "SUPERADMIN"
)

// Valid reports whether the role is one of the known platform roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// User represents a platform account. Users are never hard-deleted; access
// is revoked by flipping role or membership status instead.
type User struct {
	ID               int64
	Email            string
	PasswordHash     string
	Name             string
	AvatarURL        string
	Role             Role
	TwoFactorEnabled bool
	DefaultOrgID     *int64
	EmailVerifiedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsOAuthOnly reports whether the user can only sign in through a linked
// provider account.
func (u User) IsOAuthOnly() bool {
	return u.PasswordHash == ""
}

// Account links a user to an external OAuth identity. Immutable after
// creation except for token refresh fields.
type Account struct {
	ID                int64
	UserID            int64
	Provider          string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	CreatedAt         time.Time
}
