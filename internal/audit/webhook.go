package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/repository"
)

// WebhookSink posts audit events to the first configured webhook that
// matches the event, checked in scope order SUPERADMIN, then ORG, then
// USER.
type WebhookSink struct {
	repo   repository.AuditRepository
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSink builds a sink with a bounded HTTP client.
func NewWebhookSink(repo repository.AuditRepository, logger *zap.Logger) *WebhookSink {
	if logger == nil {
		logger = zap.L()
	}
	return &WebhookSink{
		repo:   repo,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type webhookPayload struct {
	Name      string `json:"name"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	ActorID   int64  `json:"actor_id"`
	OrgID     *int64 `json:"org_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Send delivers the event to the winning webhook, if any. Errors are
// logged and swallowed.
func (s *WebhookSink) Send(ctx context.Context, event Event) {
	settings, err := s.repo.FindWebhooks(ctx, event.OrgID, &event.ActorID)
	if err != nil {
		s.logger.Warn("webhook settings lookup failed", zap.Error(err))
		return
	}

	setting, ok := pickWebhook(settings)
	if !ok {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Name:      event.Name,
		Message:   event.Message,
		Type:      event.Type,
		ActorID:   event.ActorID,
		OrgID:     event.OrgID,
		Timestamp: event.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("webhook payload encode failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, setting.WebhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("webhook request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			zap.String("scope", string(setting.Scope)),
			zap.Error(err),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("webhook delivery rejected",
			zap.String("scope", string(setting.Scope)),
			zap.Int("status", resp.StatusCode),
		)
	}
}

// pickWebhook returns the first active setting. Settings arrive ordered
// by scope priority from the repository.
func pickWebhook(settings []domain.NotifierSetting) (domain.NotifierSetting, bool) {
	for _, s := range settings {
		if s.Active && s.WebhookURL != "" {
			return s, true
		}
	}
	return domain.NotifierSetting{}, false
}
