// Package bootstrap seeds required records on startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/config"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/password"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// EnsureSuperadmin creates the platform superadmin if missing.
func EnsureSuperadmin(lc fx.Lifecycle, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureSuperadmin(ctx, cfg, users, node, logger)
		},
	})
}

func ensureSuperadmin(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	existing, err := users.GetByEmail(ctx, cfg.SuperadminEmail)
	if err == nil {
		if existing.Role != domain.RoleSuperadmin {
			return fmt.Errorf("superadmin email %s held by non-superadmin account", cfg.SuperadminEmail)
		}
		return nil
	}
	if !errors.Is(err, autherr.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup superadmin: %w", err)
	}

	hashed, err := password.Hash(cfg.SuperadminPass)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := users.Create(ctx, domain.User{
		ID:              node.Generate().Int64(),
		Email:           cfg.SuperadminEmail,
		PasswordHash:    hashed,
		Name:            "Superadmin",
		Role:            domain.RoleSuperadmin,
		EmailVerifiedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create superadmin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap superadmin created",
			zap.String("email", created.Email),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
