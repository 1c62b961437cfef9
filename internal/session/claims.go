// Package session builds, signs, and refreshes the claim set carried by the
// session token. Claims are cached in the token and re-fetched from storage
// only when incomplete, explicitly refreshed, or older than the staleness
// window.
package session

import (
	"time"

	"github.com/peterlianpi/pcore-auth/internal/domain"
)

// Claims is the cached subset of user attributes embedded in the session
// token.
type Claims struct {
	UserID           int64       `json:"uid"`
	Name             string      `json:"name,omitempty"`
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
	IsOAuth          bool        `json:"is_oauth"`
	DefaultOrgID     *int64      `json:"default_org_id,omitempty"`
	AvatarURL        string      `json:"picture,omitempty"`
	RefreshedAt      int64       `json:"refreshed_at"`
}

// Complete reports whether the claim set carries everything handlers rely
// on. Incomplete claims force a storage refresh regardless of age.
func (c Claims) Complete() bool {
	return c.UserID != 0 && c.Email != "" && c.Role.Valid() && c.RefreshedAt != 0
}

// IsStale reports whether the claims were last loaded from storage more
// than the staleness window ago. RefreshedAt holds truncated Unix seconds,
// so the comparison stays at second granularity.
func (c Claims) IsStale(now time.Time, staleAfter time.Duration) bool {
	if c.RefreshedAt == 0 {
		return true
	}
	return now.Unix()-c.RefreshedAt > int64(staleAfter.Seconds())
}
