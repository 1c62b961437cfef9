// Package permission maps org roles onto a strict privilege ladder and
// gates capabilities by minimum level.
package permission

import (
	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

// Privilege levels. Higher always implies every capability of lower.
const (
	LevelMember      = 1
	LevelOfficeStaff = 2
	LevelAccountant  = 3
	LevelAdmin       = 4
	LevelOwner       = 5
)

var roleLevels = map[domain.OrgRole]int{
	domain.OrgRoleMember:      LevelMember,
	domain.OrgRoleOfficeStaff: LevelOfficeStaff,
	domain.OrgRoleAccountant:  LevelAccountant,
	domain.OrgRoleAdmin:       LevelAdmin,
	domain.OrgRoleOwner:       LevelOwner,
}

// Level returns the numeric privilege level for a role, 0 for unknown
// roles.
func Level(role domain.OrgRole) int {
	return roleLevels[role]
}

// Capability names a gated org-scoped action.
type Capability string

const (
	CapViewMembers    Capability = "org:view-members"
	CapManageFinances Capability = "org:manage-finances"
	CapManageMembers  Capability = "org:manage-members"
	CapManageOrg      Capability = "org:manage"
	CapTransferOwner  Capability = "org:transfer-owner"
)

type requirement struct {
	minLevel  int
	ownerOnly bool
}

var registry = map[Capability]requirement{
	CapViewMembers:    {minLevel: LevelOfficeStaff},
	CapManageFinances: {minLevel: LevelAccountant},
	CapManageMembers:  {minLevel: LevelAdmin},
	CapManageOrg:      {minLevel: LevelAdmin},
	CapTransferOwner:  {minLevel: LevelOwner, ownerOnly: true},
}

// Check verifies that role may exercise cap. Unknown capabilities and
// unknown roles are always denied.
func Check(role domain.OrgRole, cap Capability) error {
	req, ok := registry[cap]
	if !ok {
		return autherr.ErrInsufficientRole
	}
	level := Level(role)
	if level == 0 || level < req.minLevel {
		return autherr.ErrInsufficientRole
	}
	if req.ownerOnly && role != domain.OrgRoleOwner {
		return autherr.ErrInsufficientRole
	}
	return nil
}

// CheckRoleChange verifies that actor may set target's role to newRole.
// Granting or revoking OWNER is reserved to the current owner.
func CheckRoleChange(actor domain.OrgRole, targetCurrent, newRole domain.OrgRole) error {
	if newRole == domain.OrgRoleOwner || targetCurrent == domain.OrgRoleOwner {
		return Check(actor, CapTransferOwner)
	}
	return Check(actor, CapManageMembers)
}
