package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/tenant"
)

type memoryOrgRepo struct {
	memberships map[[2]int64]domain.Membership
}

func (r *memoryOrgRepo) CreateOrg(context.Context, domain.Organization, domain.Membership) (domain.Organization, error) {
	panic("not used")
}

func (r *memoryOrgRepo) GetOrg(context.Context, int64) (domain.Organization, error) {
	panic("not used")
}

func (r *memoryOrgRepo) GetMembership(_ context.Context, userID, orgID int64) (domain.Membership, error) {
	m, ok := r.memberships[[2]int64{userID, orgID}]
	if !ok {
		return domain.Membership{}, autherr.ErrNotFound
	}
	return m, nil
}

func (r *memoryOrgRepo) ListMembers(context.Context, int64) ([]domain.Membership, error) {
	panic("not used")
}

func (r *memoryOrgRepo) CreateMembership(context.Context, domain.Membership) (domain.Membership, error) {
	panic("not used")
}

func (r *memoryOrgRepo) UpdateMembershipRole(context.Context, int64, int64, domain.OrgRole) error {
	panic("not used")
}

func (r *memoryOrgRepo) RemoveMembership(context.Context, int64, int64) error {
	panic("not used")
}

func (r *memoryOrgRepo) ReactivateMembership(context.Context, int64, int64, domain.OrgRole) error {
	panic("not used")
}

func TestResolveActiveMembership(t *testing.T) {
	now := time.Now()
	repo := &memoryOrgRepo{memberships: map[[2]int64]domain.Membership{
		{1, 10}: {UserID: 1, OrgID: 10, Role: domain.OrgRoleAdmin, Status: domain.MembershipActive, JoinedAt: now},
	}}
	resolver := tenant.NewResolver(repo, zap.NewNop())

	role, err := resolver.Resolve(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleAdmin, role)
}

func TestResolveNonMember(t *testing.T) {
	resolver := tenant.NewResolver(&memoryOrgRepo{memberships: map[[2]int64]domain.Membership{}}, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), 1, 10)
	require.ErrorIs(t, err, autherr.ErrNotAMember)
}

func TestResolveRemovedMemberLooksLikeNonMember(t *testing.T) {
	now := time.Now()
	repo := &memoryOrgRepo{memberships: map[[2]int64]domain.Membership{
		{1, 10}: {UserID: 1, OrgID: 10, Role: domain.OrgRoleOwner, Status: domain.MembershipRemoved, JoinedAt: now, RemovedAt: &now},
	}}
	resolver := tenant.NewResolver(repo, zap.NewNop())

	_, removedErr := resolver.Resolve(context.Background(), 1, 10)
	_, strangerErr := resolver.Resolve(context.Background(), 2, 10)
	require.ErrorIs(t, removedErr, autherr.ErrNotAMember)
	require.ErrorIs(t, strangerErr, autherr.ErrNotAMember)
	require.Equal(t, strangerErr, removedErr)
}

func TestResolveOtherOrgDoesNotLeak(t *testing.T) {
	now := time.Now()
	repo := &memoryOrgRepo{memberships: map[[2]int64]domain.Membership{
		{1, 10}: {UserID: 1, OrgID: 10, Role: domain.OrgRoleOwner, Status: domain.MembershipActive, JoinedAt: now},
	}}
	resolver := tenant.NewResolver(repo, zap.NewNop())

	_, err := resolver.Resolve(context.Background(), 1, 99)
	require.ErrorIs(t, err, autherr.ErrNotAMember)
}
