package audit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/audit"
	"github.com/peterlianpi/pcore-auth/internal/domain"
)

type memoryAuditRepo struct {
	mu       sync.Mutex
	logs     []domain.UpdateLog
	settings []domain.NotifierSetting
	fail     bool
}

func (r *memoryAuditRepo) AppendLog(_ context.Context, entry domain.UpdateLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memoryAuditRepo) FindWebhooks(context.Context, *int64, *int64) ([]domain.NotifierSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings, nil
}

func (r *memoryAuditRepo) logCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}

func newTestNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestNotifierDeliversLog(t *testing.T) {
	repo := &memoryAuditRepo{}
	n := audit.NewNotifier(repo, nil, newTestNode(t), 8, zap.NewNop())

	n.Emit(audit.Event{ActorID: 7, Name: "login", Message: "signed in", Type: "AUTH"})
	n.Close()

	require.Equal(t, 1, repo.logCount())
	require.Equal(t, "login", repo.logs[0].Name)
	require.Equal(t, int64(7), repo.logs[0].UpdatedBy)
	require.NotZero(t, repo.logs[0].ID)
	require.False(t, repo.logs[0].CreatedAt.IsZero())
}

func TestNotifierDrainsBufferOnClose(t *testing.T) {
	repo := &memoryAuditRepo{}
	n := audit.NewNotifier(repo, nil, newTestNode(t), 32, zap.NewNop())

	for i := 0; i < 10; i++ {
		n.Emit(audit.Event{ActorID: 1, Name: "event", Type: "AUTH"})
	}
	n.Close()

	require.Equal(t, int64(0), n.Dropped())
	require.Equal(t, 10, repo.logCount())
}

func TestNotifierEmitAfterCloseIsNoop(t *testing.T) {
	repo := &memoryAuditRepo{}
	n := audit.NewNotifier(repo, nil, newTestNode(t), 8, zap.NewNop())
	n.Close()

	n.Emit(audit.Event{ActorID: 1, Name: "late", Type: "AUTH"})
	require.Equal(t, 0, repo.logCount())
}

func TestNotifierSwallowsSinkFailures(t *testing.T) {
	repo := &memoryAuditRepo{fail: true}
	n := audit.NewNotifier(repo, nil, newTestNode(t), 8, zap.NewNop())

	// Must not panic or surface the failure.
	n.Emit(audit.Event{ActorID: 1, Name: "event", Type: "AUTH"})
	n.Close()
	require.Equal(t, 0, repo.logCount())
}

func TestWebhookFirstMatchingScopeWins(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	orgID := int64(10)
	repo := &memoryAuditRepo{settings: []domain.NotifierSetting{
		{Scope: domain.ScopeSuperadmin, WebhookURL: srv.URL + "/super", Active: true},
		{Scope: domain.ScopeOrg, OrgID: &orgID, WebhookURL: srv.URL + "/org", Active: true},
	}}
	sink := audit.NewWebhookSink(repo, zap.NewNop())

	sink.Send(context.Background(), audit.Event{OrgID: &orgID, ActorID: 7, Name: "role-change", Type: "ORG", CreatedAt: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/super"}, hits)
}

func TestWebhookSkipsInactiveSettings(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
	}))
	defer srv.Close()

	repo := &memoryAuditRepo{settings: []domain.NotifierSetting{
		{Scope: domain.ScopeSuperadmin, WebhookURL: srv.URL + "/super", Active: false},
		{Scope: domain.ScopeUser, WebhookURL: srv.URL + "/user", Active: true},
	}}
	sink := audit.NewWebhookSink(repo, zap.NewNop())

	sink.Send(context.Background(), audit.Event{ActorID: 7, Name: "login", Type: "AUTH", CreatedAt: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/user"}, hits)
}
