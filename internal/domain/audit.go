package domain

import "time"

// UpdateLog is an append-only audit entry. Rows are never mutated or
// deleted by normal flow.
type UpdateLog struct {
	ID        int64
	OrgID     *int64
	Name      string
	Message   string
	UpdatedBy int64
	Type      string
	CreatedAt time.Time
}

// NotifierScope orders webhook settings lookup: superadmin settings win
// over org settings, which win over user settings.
type NotifierScope string

const (
	ScopeSuperadmin NotifierScope = "SUPERADMIN"
	ScopeOrg        NotifierScope = "ORG"
	ScopeUser       NotifierScope = "USER"
)

// NotifierSetting configures an external webhook for audit events.
type NotifierSetting struct {
	ID         int64
	Scope      NotifierScope
	OrgID      *int64
	UserID     *int64
	WebhookURL string
	Active     bool
	CreatedAt  time.Time
}
