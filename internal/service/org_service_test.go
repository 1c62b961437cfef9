package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/audit"
	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/service"
	"github.com/peterlianpi/pcore-auth/internal/tenant"
)

type orgFixture struct {
	svc   service.OrgService
	orgs  *memoryOrgRepo
	users *memoryUserRepo
	node  *snowflake.Node
}

func newOrgFixture(t *testing.T) *orgFixture {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	orgs := newMemoryOrgRepo()
	users := newMemoryUserRepo()
	logger := zap.NewNop()
	resolver := tenant.NewResolver(orgs, logger)
	notifier := audit.NewNotifier(&memoryAuditRepo{}, nil, node, 32, logger)
	t.Cleanup(notifier.Close)

	return &orgFixture{
		svc:   service.NewOrgService(orgs, users, resolver, notifier, node, logger),
		orgs:  orgs,
		users: users,
		node:  node,
	}
}

func (f *orgFixture) seedUser(t *testing.T, email string) domain.User {
	t.Helper()
	user := domain.User{ID: f.node.Generate().Int64(), Email: email, Role: domain.RoleUser}
	f.users.put(user)
	return user
}

func (f *orgFixture) seedMember(t *testing.T, orgID int64, role domain.OrgRole) domain.User {
	t.Helper()
	user := f.seedUser(t, string(role)+"@x.com")
	f.orgs.memberships[[2]int64{user.ID, orgID}] = domain.Membership{
		ID:       f.node.Generate().Int64(),
		UserID:   user.ID,
		OrgID:    orgID,
		Role:     role,
		Status:   domain.MembershipActive,
		JoinedAt: nowRef(),
	}
	return user
}

func TestCreateOrgMakesCreatorOwnerAndDefault(t *testing.T) {
	f := newOrgFixture(t)
	creator := f.seedUser(t, "creator@x.com")
	ctx := context.Background()

	org, err := f.svc.CreateOrg(ctx, creator.ID, "Hope Church", domain.OrgTypeChurch)
	require.NoError(t, err)

	m, err := f.orgs.GetMembership(ctx, creator.ID, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleOwner, m.Role)
	require.Equal(t, domain.MembershipActive, m.Status)

	got, err := f.users.GetByID(ctx, creator.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DefaultOrgID)
	require.Equal(t, org.ID, *got.DefaultOrgID)
}

func TestCreateOrgKeepsExistingDefault(t *testing.T) {
	f := newOrgFixture(t)
	creator := f.seedUser(t, "creator@x.com")
	ctx := context.Background()

	first, err := f.svc.CreateOrg(ctx, creator.ID, "First", domain.OrgTypeSchool)
	require.NoError(t, err)
	_, err = f.svc.CreateOrg(ctx, creator.ID, "Second", domain.OrgTypeBusiness)
	require.NoError(t, err)

	got, err := f.users.GetByID(ctx, creator.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, *got.DefaultOrgID)
}

func TestCreateOrgRejectsInvalidInput(t *testing.T) {
	f := newOrgFixture(t)
	creator := f.seedUser(t, "creator@x.com")
	ctx := context.Background()

	_, err := f.svc.CreateOrg(ctx, creator.ID, "", domain.OrgTypeSchool)
	require.Error(t, err)
	_, err = f.svc.CreateOrg(ctx, creator.ID, "Org", domain.OrgType("CLUB"))
	require.Error(t, err)
}

func TestListMembersRequiresMembershipAndLevel(t *testing.T) {
	f := newOrgFixture(t)
	creator := f.seedUser(t, "creator@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, creator.ID, "Org", domain.OrgTypeNonprofit)
	require.NoError(t, err)

	member := f.seedMember(t, org.ID, domain.OrgRoleMember)
	staff := f.seedMember(t, org.ID, domain.OrgRoleOfficeStaff)
	outsider := f.seedUser(t, "outsider@x.com")

	_, err = f.svc.ListMembers(ctx, outsider.ID, org.ID)
	require.ErrorIs(t, err, autherr.ErrNotAMember)

	_, err = f.svc.ListMembers(ctx, member.ID, org.ID)
	require.ErrorIs(t, err, autherr.ErrInsufficientRole)

	members, err := f.svc.ListMembers(ctx, staff.ID, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 3)
}

func TestMembershipDoesNotCrossOrgs(t *testing.T) {
	f := newOrgFixture(t)
	ownerA := f.seedUser(t, "owner-a@x.com")
	ownerB := f.seedUser(t, "owner-b@x.com")
	ctx := context.Background()

	_, err := f.svc.CreateOrg(ctx, ownerA.ID, "Org A", domain.OrgTypeSchool)
	require.NoError(t, err)
	orgB, err := f.svc.CreateOrg(ctx, ownerB.ID, "Org B", domain.OrgTypeSchool)
	require.NoError(t, err)

	// Owner of A holds no standing in B.
	_, err = f.svc.ListMembers(ctx, ownerA.ID, orgB.ID)
	require.ErrorIs(t, err, autherr.ErrNotAMember)
}

func TestAddMember(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeBusiness)
	require.NoError(t, err)

	joiner := f.seedUser(t, "joiner@x.com")
	m, err := f.svc.AddMember(ctx, owner.ID, org.ID, joiner.ID, domain.OrgRoleAccountant)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleAccountant, m.Role)

	// Duplicate join conflicts.
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, joiner.ID, domain.OrgRoleMember)
	require.ErrorIs(t, err, autherr.ErrDuplicateResource)

	// OWNER cannot be granted on join.
	another := f.seedUser(t, "another@x.com")
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, another.ID, domain.OrgRoleOwner)
	require.ErrorIs(t, err, autherr.ErrInsufficientRole)
}

func TestChangeRoleRequiresAdmin(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeSchool)
	require.NoError(t, err)

	accountant := f.seedMember(t, org.ID, domain.OrgRoleAccountant)
	member := f.seedMember(t, org.ID, domain.OrgRoleMember)

	err = f.svc.ChangeRole(ctx, accountant.ID, org.ID, member.ID, domain.OrgRoleOfficeStaff)
	require.ErrorIs(t, err, autherr.ErrInsufficientRole)

	require.NoError(t, f.svc.ChangeRole(ctx, owner.ID, org.ID, member.ID, domain.OrgRoleOfficeStaff))
	m, err := f.orgs.GetMembership(ctx, member.ID, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleOfficeStaff, m.Role)
}

func TestOwnerTransferIsOwnerOnlyAndDemotesPrevious(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeChurch)
	require.NoError(t, err)

	admin := f.seedMember(t, org.ID, domain.OrgRoleAdmin)
	member := f.seedMember(t, org.ID, domain.OrgRoleMember)

	// An admin may not grant OWNER, nor touch the owner's role.
	err = f.svc.ChangeRole(ctx, admin.ID, org.ID, member.ID, domain.OrgRoleOwner)
	require.ErrorIs(t, err, autherr.ErrInsufficientRole)
	err = f.svc.ChangeRole(ctx, admin.ID, org.ID, owner.ID, domain.OrgRoleMember)
	require.ErrorIs(t, err, autherr.ErrInsufficientRole)

	// The owner transfers ownership and steps down to ADMIN.
	require.NoError(t, f.svc.ChangeRole(ctx, owner.ID, org.ID, admin.ID, domain.OrgRoleOwner))

	newOwner, err := f.orgs.GetMembership(ctx, admin.ID, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleOwner, newOwner.Role)

	previous, err := f.orgs.GetMembership(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleAdmin, previous.Role)
}

func TestRemoveMember(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeSchool)
	require.NoError(t, err)

	member := f.seedMember(t, org.ID, domain.OrgRoleMember)

	require.NoError(t, f.svc.RemoveMember(ctx, owner.ID, org.ID, member.ID))

	m, err := f.orgs.GetMembership(ctx, member.ID, org.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MembershipRemoved, m.Status)
	require.NotNil(t, m.RemovedAt)

	// A removed member has no standing anymore.
	_, err = f.svc.ListMembers(ctx, member.ID, org.ID)
	require.ErrorIs(t, err, autherr.ErrNotAMember)

	// Removing again reports absence.
	require.ErrorIs(t, f.svc.RemoveMember(ctx, owner.ID, org.ID, member.ID), autherr.ErrNotFound)
}

func TestRemovedMemberCanRejoin(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeNonprofit)
	require.NoError(t, err)

	member := f.seedMember(t, org.ID, domain.OrgRoleMember)
	require.NoError(t, f.svc.RemoveMember(ctx, owner.ID, org.ID, member.ID))

	// Re-adding reactivates the historical row instead of conflicting.
	rejoined, err := f.svc.AddMember(ctx, owner.ID, org.ID, member.ID, domain.OrgRoleOfficeStaff)
	require.NoError(t, err)
	require.Equal(t, domain.OrgRoleOfficeStaff, rejoined.Role)
	require.Equal(t, domain.MembershipActive, rejoined.Status)
	require.Nil(t, rejoined.RemovedAt)

	// Standing is restored.
	members, err := f.svc.ListMembers(ctx, member.ID, org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	// An active membership still conflicts.
	_, err = f.svc.AddMember(ctx, owner.ID, org.ID, member.ID, domain.OrgRoleMember)
	require.ErrorIs(t, err, autherr.ErrDuplicateResource)
}

func TestOwnerCannotBeRemoved(t *testing.T) {
	f := newOrgFixture(t)
	owner := f.seedUser(t, "owner@x.com")
	ctx := context.Background()
	org, err := f.svc.CreateOrg(ctx, owner.ID, "Org", domain.OrgTypeSchool)
	require.NoError(t, err)

	admin := f.seedMember(t, org.ID, domain.OrgRoleAdmin)

	require.ErrorIs(t, f.svc.RemoveMember(ctx, admin.ID, org.ID, owner.ID), autherr.ErrInsufficientRole)
}
