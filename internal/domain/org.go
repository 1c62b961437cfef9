package domain

import "time"

// OrgType categorizes the organization being managed.
type OrgType string

const (
	OrgTypeSchool    OrgType = "SCHOOL"
	OrgTypeChurch    OrgType = "CHURCH"
	OrgTypeBusiness  OrgType = "BUSINESS"
	OrgTypeNonprofit OrgType = "NONPROFIT"
)

// Valid reports whether the org type is known.
func (t OrgType) Valid() bool {
	switch t {
	case OrgTypeSchool, OrgTypeChurch, OrgTypeBusiness, OrgTypeNonprofit:
		return true
	}
	return false
}

// OrgRole is the role a user holds inside one organization. This is the
// canonical role type consulted by the permission gate; no other layer
// defines its own copy.
type OrgRole string

const (
	OrgRoleOwner       OrgRole = "OWNER"
	OrgRoleAdmin       OrgRole = "ADMIN"
	OrgRoleAccountant  OrgRole = "ACCOUNTANT"
	OrgRoleOfficeStaff OrgRole = "OFFICE_STAFF"
	OrgRoleMember      OrgRole = "MEMBER"
)

// Valid reports whether the org role is known.
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleAccountant, OrgRoleOfficeStaff, OrgRoleMember:
		return true
	}
	return false
}

// MembershipStatus tracks whether a membership currently grants access.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "ACTIVE"
	MembershipRemoved MembershipStatus = "REMOVED"
)

// Organization is a tenant. A user may belong to many organizations with
// independent roles.
type Organization struct {
	ID        int64
	Name      string
	Type      OrgType
	CreatedBy int64
	CreatedAt time.Time
}

// Membership joins a user to an organization. At most one row per
// (user, org); status REMOVED revokes access while keeping history.
type Membership struct {
	ID        int64
	UserID    int64
	OrgID     int64
	Role      OrgRole
	Status    MembershipStatus
	JoinedAt  time.Time
	RemovedAt *time.Time
}

// Active reports whether the membership currently grants tenant access.
func (m Membership) Active() bool {
	return m.Status == MembershipActive
}
