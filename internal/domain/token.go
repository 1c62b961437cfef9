package domain

import "time"

// TokenPurpose distinguishes the single-use token families. At most one
// live token exists per (purpose, email).
type TokenPurpose string

const (
	TokenEmailVerify   TokenPurpose = "EMAIL_VERIFY"
	TokenPasswordReset TokenPurpose = "PASSWORD_RESET"
	TokenTwoFactor     TokenPurpose = "TWO_FACTOR"
)

// AuthToken is a single-use token keyed by subject email. Verification and
// reset tokens carry a UUID value; two-factor tokens carry a 6-digit code.
type AuthToken struct {
	ID        int64
	Purpose   TokenPurpose
	Email     string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t AuthToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TwoFactorConfirmation marks that a user's two-factor code was accepted.
// It is consumed (deleted) by the very next credentials sign-in.
type TwoFactorConfirmation struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
}

// SigningKey is a persisted HMAC key used to sign session tokens.
type SigningKey struct {
	ID        int64
	KID       string
	Secret    []byte
	Algorithm string
	Active    bool
	CreatedAt time.Time
	RotatedAt *time.Time
}
