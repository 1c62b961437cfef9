package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// Builder assembles claims from storage on sign-in and on refresh.
type Builder struct {
	users      repository.UserRepository
	accounts   repository.AccountRepository
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewBuilder wires dependencies.
func NewBuilder(users repository.UserRepository, accounts repository.AccountRepository, staleAfter time.Duration, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.L()
	}
	return &Builder{users: users, accounts: accounts, staleAfter: staleAfter, logger: logger}
}

// StaleAfter returns the configured staleness window.
func (b *Builder) StaleAfter() time.Duration {
	return b.staleAfter
}

// Build loads the user's current attributes and assembles a fresh claim
// set. The isOAuth flag is derived from whether any provider account is
// linked.
func (b *Builder) Build(ctx context.Context, userID int64) (Claims, error) {
	user, err := b.users.GetByID(ctx, userID)
	if err != nil {
		return Claims{}, fmt.Errorf("load user: %w", err)
	}

	isOAuth, err := b.accounts.ExistsForUser(ctx, userID)
	if err != nil {
		// Treat a lookup failure as no linked account; the flag is
		// informational and must not block sign-in.
		b.logger.Warn("account lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		isOAuth = false
	}

	return Claims{
		UserID:           user.ID,
		Name:             user.Name,
		Email:            user.Email,
		Role:             user.Role,
		TwoFactorEnabled: user.TwoFactorEnabled,
		IsOAuth:          isOAuth,
		DefaultOrgID:     user.DefaultOrgID,
		AvatarURL:        user.AvatarURL,
		RefreshedAt:      time.Now().Unix(),
	}, nil
}

// Refresh returns rebuilt claims when the cached set is incomplete or
// stale, otherwise the cached claims unchanged. The bool reports whether a
// rebuild happened.
func (b *Builder) Refresh(ctx context.Context, cached Claims, force bool) (Claims, bool, error) {
	if !force && cached.Complete() && !cached.IsStale(time.Now(), b.staleAfter) {
		return cached, false, nil
	}
	rebuilt, err := b.Build(ctx, cached.UserID)
	if err != nil {
		return Claims{}, false, err
	}
	return rebuilt, true, nil
}
