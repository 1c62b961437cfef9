package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/audit"
	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/permission"
	"github.com/peterlianpi/pcore-auth/internal/repository"
	"github.com/peterlianpi/pcore-auth/internal/tenant"
)

// OrgService defines organization and membership management.
type OrgService interface {
	CreateOrg(ctx context.Context, actorID int64, name string, orgType domain.OrgType) (domain.Organization, error)
	ListMembers(ctx context.Context, actorID, orgID int64) ([]domain.Membership, error)
	AddMember(ctx context.Context, actorID, orgID, userID int64, role domain.OrgRole) (domain.Membership, error)
	ChangeRole(ctx context.Context, actorID, orgID, targetID int64, newRole domain.OrgRole) error
	RemoveMember(ctx context.Context, actorID, orgID, targetID int64) error
}

type orgService struct {
	orgs     repository.OrgRepository
	users    repository.UserRepository
	resolver *tenant.Resolver
	notifier *audit.Notifier
	node     *snowflake.Node
	logger   *zap.Logger
}

// NewOrgService wires the org service implementation.
func NewOrgService(
	orgs repository.OrgRepository,
	users repository.UserRepository,
	resolver *tenant.Resolver,
	notifier *audit.Notifier,
	node *snowflake.Node,
	logger *zap.Logger,
) OrgService {
	if logger == nil {
		logger = zap.L()
	}
	return &orgService{
		orgs:     orgs,
		users:    users,
		resolver: resolver,
		notifier: notifier,
		node:     node,
		logger:   logger,
	}
}

// CreateOrg creates the organization with the creator as OWNER. The new
// org becomes the creator's default when they have none.
func (s *orgService) CreateOrg(ctx context.Context, actorID int64, name string, orgType domain.OrgType) (domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" || !orgType.Valid() {
		return domain.Organization{}, autherr.ErrInvalidCredentials
	}

	org := domain.Organization{
		ID:        s.node.Generate().Int64(),
		Name:      name,
		Type:      orgType,
		CreatedBy: actorID,
	}
	owner := domain.Membership{
		ID:     s.node.Generate().Int64(),
		UserID: actorID,
		OrgID:  org.ID,
		Role:   domain.OrgRoleOwner,
		Status: domain.MembershipActive,
	}

	created, err := s.orgs.CreateOrg(ctx, org, owner)
	if err != nil {
		return domain.Organization{}, err
	}

	if actor, err := s.users.GetByID(ctx, actorID); err == nil && actor.DefaultOrgID == nil {
		if err := s.users.SetDefaultOrg(ctx, actorID, created.ID); err != nil {
			s.logger.Warn("set default org failed", zap.Int64("user_id", actorID), zap.Error(err))
		}
	}

	s.notifier.Emit(audit.Event{
		OrgID:   &created.ID,
		ActorID: actorID,
		Name:    "org.created",
		Message: "organization " + created.Name + " created",
		Type:    "ORG",
	})
	return created, nil
}

// ListMembers returns all memberships of the org, including removed ones.
func (s *orgService) ListMembers(ctx context.Context, actorID, orgID int64) ([]domain.Membership, error) {
	role, err := s.resolver.Resolve(ctx, actorID, orgID)
	if err != nil {
		return nil, err
	}
	if err := permission.Check(role, permission.CapViewMembers); err != nil {
		return nil, err
	}
	return s.orgs.ListMembers(ctx, orgID)
}

// AddMember joins a user to the org with the given role. Granting OWNER
// this way is not allowed. A previously removed member rejoins by
// reactivating the historical row.
func (s *orgService) AddMember(ctx context.Context, actorID, orgID, userID int64, role domain.OrgRole) (domain.Membership, error) {
	actorRole, err := s.resolver.Resolve(ctx, actorID, orgID)
	if err != nil {
		return domain.Membership{}, err
	}
	if err := permission.Check(actorRole, permission.CapManageMembers); err != nil {
		return domain.Membership{}, err
	}
	if !role.Valid() || role == domain.OrgRoleOwner {
		return domain.Membership{}, autherr.ErrInsufficientRole
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return domain.Membership{}, err
	}

	var membership domain.Membership
	existing, err := s.orgs.GetMembership(ctx, userID, orgID)
	switch {
	case err == nil && existing.Active():
		return domain.Membership{}, autherr.ErrDuplicateResource
	case err == nil:
		if err := s.orgs.ReactivateMembership(ctx, userID, orgID, role); err != nil {
			return domain.Membership{}, err
		}
		membership, err = s.orgs.GetMembership(ctx, userID, orgID)
		if err != nil {
			return domain.Membership{}, err
		}
	case errors.Is(err, autherr.ErrNotFound):
		membership, err = s.orgs.CreateMembership(ctx, domain.Membership{
			ID:     s.node.Generate().Int64(),
			UserID: userID,
			OrgID:  orgID,
			Role:   role,
			Status: domain.MembershipActive,
		})
		if err != nil {
			return domain.Membership{}, err
		}
	default:
		return domain.Membership{}, err
	}

	s.notifier.Emit(audit.Event{
		OrgID:   &orgID,
		ActorID: actorID,
		Name:    "org.member-added",
		Message: "member added with role " + string(role),
		Type:    "ORG",
	})
	return membership, nil
}

// ChangeRole updates a member's role. Any change that grants or revokes
// OWNER is reserved to the current owner; transferring ownership demotes
// the previous owner to ADMIN.
func (s *orgService) ChangeRole(ctx context.Context, actorID, orgID, targetID int64, newRole domain.OrgRole) error {
	if !newRole.Valid() {
		return autherr.ErrInsufficientRole
	}

	actorRole, err := s.resolver.Resolve(ctx, actorID, orgID)
	if err != nil {
		return err
	}

	target, err := s.orgs.GetMembership(ctx, targetID, orgID)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return autherr.ErrNotFound
		}
		return err
	}
	if !target.Active() {
		return autherr.ErrNotFound
	}

	if err := permission.CheckRoleChange(actorRole, target.Role, newRole); err != nil {
		return err
	}

	if err := s.orgs.UpdateMembershipRole(ctx, targetID, orgID, newRole); err != nil {
		return err
	}

	if newRole == domain.OrgRoleOwner && actorID != targetID {
		// Ownership transfer leaves exactly one owner behind.
		if err := s.orgs.UpdateMembershipRole(ctx, actorID, orgID, domain.OrgRoleAdmin); err != nil {
			s.logger.Error("demote previous owner failed",
				zap.Int64("org_id", orgID),
				zap.Int64("user_id", actorID),
				zap.Error(err),
			)
			return err
		}
	}

	s.notifier.Emit(audit.Event{
		OrgID:   &orgID,
		ActorID: actorID,
		Name:    "org.role-changed",
		Message: "member role changed from " + string(target.Role) + " to " + string(newRole),
		Type:    "ORG",
	})
	return nil
}

// RemoveMember revokes a membership by flipping it to REMOVED. The owner
// cannot be removed; ownership must be transferred first.
func (s *orgService) RemoveMember(ctx context.Context, actorID, orgID, targetID int64) error {
	actorRole, err := s.resolver.Resolve(ctx, actorID, orgID)
	if err != nil {
		return err
	}
	if err := permission.Check(actorRole, permission.CapManageMembers); err != nil {
		return err
	}

	target, err := s.orgs.GetMembership(ctx, targetID, orgID)
	if err != nil {
		return err
	}
	if !target.Active() {
		return autherr.ErrNotFound
	}
	if target.Role == domain.OrgRoleOwner {
		return autherr.ErrInsufficientRole
	}

	if err := s.orgs.RemoveMembership(ctx, targetID, orgID); err != nil {
		return err
	}

	s.notifier.Emit(audit.Event{
		OrgID:   &orgID,
		ActorID: actorID,
		Name:    "org.member-removed",
		Message: "member removed",
		Type:    "ORG",
	})
	return nil
}
