// Package tenant resolves the caller's role inside a target organization.
// Every organization-scoped request passes through Resolve; possession of a
// session never implies membership.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// Resolver checks org membership per request.
type Resolver struct {
	orgs   repository.OrgRepository
	logger *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(orgs repository.OrgRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.L()
	}
	return &Resolver{orgs: orgs, logger: logger}
}

// Resolve returns the caller's role in orgID. A missing or non-ACTIVE
// membership yields ErrNotAMember; removed members are indistinguishable
// from users who never joined.
func (r *Resolver) Resolve(ctx context.Context, userID, orgID int64) (domain.OrgRole, error) {
	membership, err := r.orgs.GetMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			r.logger.Debug("membership not found",
				zap.Int64("user_id", userID),
				zap.Int64("org_id", orgID),
			)
			return "", autherr.ErrNotAMember
		}
		return "", fmt.Errorf("resolve membership: %w", err)
	}

	if !membership.Active() {
		r.logger.Debug("membership inactive",
			zap.Int64("user_id", userID),
			zap.Int64("org_id", orgID),
			zap.String("status", string(membership.Status)),
		)
		return "", autherr.ErrNotAMember
	}

	return membership.Role, nil
}
