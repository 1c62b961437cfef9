package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

func nowRef() time.Time { return time.Now() }

// In-memory repositories shared by the auth and org service tests.

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]domain.User)}
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, autherr.ErrNotFound
}

func (r *memoryUserRepo) GetByID(_ context.Context, userID int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, autherr.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.User{}, autherr.ErrDuplicateResource
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, userID int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return autherr.ErrNotFound
	}
	u.PasswordHash = hash
	r.users[userID] = u
	return nil
}

func (r *memoryUserRepo) MarkEmailVerified(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return autherr.ErrNotFound
	}
	now := nowRef()
	u.EmailVerifiedAt = &now
	r.users[userID] = u
	return nil
}

func (r *memoryUserRepo) SetDefaultOrg(_ context.Context, userID, orgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return autherr.ErrNotFound
	}
	u.DefaultOrgID = &orgID
	r.users[userID] = u
	return nil
}

func (r *memoryUserRepo) put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts []domain.Account
}

func (r *memoryAccountRepo) GetByProviderID(_ context.Context, provider, providerAccountID string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			return a, nil
		}
	}
	return domain.Account{}, autherr.ErrNotFound
}

func (r *memoryAccountRepo) ExistsForUser(_ context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryAccountRepo) Create(_ context.Context, account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Provider == account.Provider && a.ProviderAccountID == account.ProviderAccountID {
			return domain.Account{}, autherr.ErrDuplicateResource
		}
	}
	r.accounts = append(r.accounts, account)
	return account, nil
}

func (r *memoryAccountRepo) UpdateTokens(_ context.Context, accountID int64, accessToken, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.accounts {
		if a.ID == accountID {
			r.accounts[i].AccessToken = accessToken
			r.accounts[i].RefreshToken = refreshToken
			return nil
		}
	}
	return autherr.ErrNotFound
}

type memoryTokenRepo struct {
	mu     sync.Mutex
	tokens []domain.AuthToken
}

func (m *memoryTokenRepo) Replace(_ context.Context, token domain.AuthToken) (domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tokens[:0]
	for _, t := range m.tokens {
		if t.Purpose != token.Purpose || t.Email != token.Email {
			kept = append(kept, t)
		}
	}
	m.tokens = append(kept, token)
	return token, nil
}

func (m *memoryTokenRepo) GetByEmail(_ context.Context, purpose domain.TokenPurpose, email string) (domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Purpose == purpose && t.Email == email {
			return t, nil
		}
	}
	return domain.AuthToken{}, autherr.ErrNotFound
}

func (m *memoryTokenRepo) GetByToken(_ context.Context, purpose domain.TokenPurpose, value string) (domain.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Purpose == purpose && t.Token == value {
			return t, nil
		}
	}
	return domain.AuthToken{}, autherr.ErrNotFound
}

func (m *memoryTokenRepo) Delete(_ context.Context, tokenID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tokens {
		if t.ID == tokenID {
			m.tokens = append(m.tokens[:i], m.tokens[i+1:]...)
			return nil
		}
	}
	return nil
}

type memoryConfirmationRepo struct {
	mu     sync.Mutex
	byUser map[int64]domain.TwoFactorConfirmation
}

func (m *memoryConfirmationRepo) Replace(_ context.Context, c domain.TwoFactorConfirmation) (domain.TwoFactorConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUser == nil {
		m.byUser = make(map[int64]domain.TwoFactorConfirmation)
	}
	m.byUser[c.UserID] = c
	return c, nil
}

func (m *memoryConfirmationRepo) Consume(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[userID]; !ok {
		return autherr.ErrNotFound
	}
	delete(m.byUser, userID)
	return nil
}

type memoryOrgRepo struct {
	mu          sync.Mutex
	orgs        map[int64]domain.Organization
	memberships map[[2]int64]domain.Membership
}

func newMemoryOrgRepo() *memoryOrgRepo {
	return &memoryOrgRepo{
		orgs:        make(map[int64]domain.Organization),
		memberships: make(map[[2]int64]domain.Membership),
	}
}

func (r *memoryOrgRepo) CreateOrg(_ context.Context, org domain.Organization, owner domain.Membership) (domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org.CreatedAt = nowRef()
	owner.JoinedAt = org.CreatedAt
	r.orgs[org.ID] = org
	r.memberships[[2]int64{owner.UserID, owner.OrgID}] = owner
	return org, nil
}

func (r *memoryOrgRepo) GetOrg(_ context.Context, orgID int64) (domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[orgID]
	if !ok {
		return domain.Organization{}, autherr.ErrNotFound
	}
	return org, nil
}

func (r *memoryOrgRepo) GetMembership(_ context.Context, userID, orgID int64) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[[2]int64{userID, orgID}]
	if !ok {
		return domain.Membership{}, autherr.ErrNotFound
	}
	return m, nil
}

func (r *memoryOrgRepo) ListMembers(_ context.Context, orgID int64) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []domain.Membership
	for _, m := range r.memberships {
		if m.OrgID == orgID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (r *memoryOrgRepo) CreateMembership(_ context.Context, membership domain.Membership) (domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{membership.UserID, membership.OrgID}
	if _, ok := r.memberships[key]; ok {
		return domain.Membership{}, autherr.ErrDuplicateResource
	}
	membership.JoinedAt = nowRef()
	r.memberships[key] = membership
	return membership, nil
}

func (r *memoryOrgRepo) UpdateMembershipRole(_ context.Context, userID, orgID int64, role domain.OrgRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{userID, orgID}
	m, ok := r.memberships[key]
	if !ok {
		return autherr.ErrNotFound
	}
	m.Role = role
	r.memberships[key] = m
	return nil
}

func (r *memoryOrgRepo) RemoveMembership(_ context.Context, userID, orgID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{userID, orgID}
	m, ok := r.memberships[key]
	if !ok {
		return autherr.ErrNotFound
	}
	now := nowRef()
	m.Status = domain.MembershipRemoved
	m.RemovedAt = &now
	r.memberships[key] = m
	return nil
}

func (r *memoryOrgRepo) ReactivateMembership(_ context.Context, userID, orgID int64, role domain.OrgRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{userID, orgID}
	m, ok := r.memberships[key]
	if !ok || m.Status != domain.MembershipRemoved {
		return autherr.ErrNotFound
	}
	m.Role = role
	m.Status = domain.MembershipActive
	m.RemovedAt = nil
	r.memberships[key] = m
	return nil
}

type memoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.UpdateLog
}

func (r *memoryAuditRepo) AppendLog(_ context.Context, entry domain.UpdateLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memoryAuditRepo) FindWebhooks(context.Context, *int64, *int64) ([]domain.NotifierSetting, error) {
	return nil, nil
}

type memoryKeyRepo struct {
	mu  sync.Mutex
	key *domain.SigningKey
}

func (r *memoryKeyRepo) GetActiveKey(context.Context) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key == nil {
		return domain.SigningKey{}, autherr.ErrNotFound
	}
	return *r.key, nil
}

func (r *memoryKeyRepo) CreateKey(_ context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.CreatedAt = nowRef()
	r.key = &key
	return key, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}
