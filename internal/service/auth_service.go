// Package service orchestrates the auth and organization flows on top of
// the repositories, token issuer, two-factor gate, and session builder.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/peterlianpi/pcore-auth/internal/adapter/cache"
	oauthadapter "github.com/peterlianpi/pcore-auth/internal/adapter/oauth"
	"github.com/peterlianpi/pcore-auth/internal/audit"
	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/config"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/mailer"
	"github.com/peterlianpi/pcore-auth/internal/password"
	"github.com/peterlianpi/pcore-auth/internal/repository"
	"github.com/peterlianpi/pcore-auth/internal/session"
	"github.com/peterlianpi/pcore-auth/internal/token"
	"github.com/peterlianpi/pcore-auth/internal/twofactor"
)

// AuthService defines the authentication flows.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (domain.User, error)
	Login(ctx context.Context, in LoginInput) (*Session, error)
	VerifyTwoFactor(ctx context.Context, email, code string) (*Session, error)
	VerifyEmail(ctx context.Context, tokenValue string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, tokenValue, newPassword string) error
	RefreshSession(ctx context.Context, cached session.Claims, force bool) (*Session, bool, error)
	StartOAuth(ctx context.Context, provider string) (string, error)
	HandleOAuthCallback(ctx context.Context, code, state string) (*Session, error)
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput is the sign-in payload. Code is the optional inline
// two-factor code; users who enabled two-factor may also complete it in a
// second request.
type LoginInput struct {
	Email    string
	Password string
	Code     string
}

// Session is a signed session token with its claims.
type Session struct {
	Token  string
	Claims session.Claims
}

type authService struct {
	users      repository.UserRepository
	accounts   repository.AccountRepository
	tokens     repository.TokenRepository
	issuer     *token.Issuer
	gate       *twofactor.Gate
	limiter    *twofactor.Limiter
	builder    *session.Builder
	signer     *session.Signer
	stateStore cache.StateStore
	provider   oauthadapter.ProviderClient
	providers  map[string]oauthadapter.ProviderConfig
	mail       mailer.Sender
	notifier   *audit.Notifier
	node       *snowflake.Node
	cfg        config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewAuthService wires the auth service implementation.
func NewAuthService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	tokens repository.TokenRepository,
	issuer *token.Issuer,
	gate *twofactor.Gate,
	limiter *twofactor.Limiter,
	builder *session.Builder,
	signer *session.Signer,
	stateStore cache.StateStore,
	provider oauthadapter.ProviderClient,
	mail mailer.Sender,
	notifier *audit.Notifier,
	node *snowflake.Node,
	cfg config.Config,
	logger *zap.Logger,
) AuthService {
	providers := map[string]oauthadapter.ProviderConfig{}
	if cfg.OAuthGoogleID != "" {
		providers["google"] = oauthadapter.GoogleProvider(cfg.OAuthGoogleID, cfg.OAuthGoogleSecret)
	}
	if logger == nil {
		logger = zap.L()
	}
	return &authService{
		users:      users,
		accounts:   accounts,
		tokens:     tokens,
		issuer:     issuer,
		gate:       gate,
		limiter:    limiter,
		builder:    builder,
		signer:     signer,
		stateStore: stateStore,
		provider:   provider,
		providers:  providers,
		mail:       mail,
		notifier:   notifier,
		node:       node,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("github.com/peterlianpi/pcore-auth/internal/service"),
	}
}

func (s *authService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

const oauthStateTTL = 5 * time.Minute

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates the user, issues a verification token, and mails the
// verification link. The account starts unverified and cannot sign in
// until the link is used.
func (s *authService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Register")
	defer span.End()

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, autherr.ErrInvalidCredentials
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           s.node.Generate().Int64(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         domain.RoleUser,
	})
	if err != nil {
		return domain.User{}, err
	}

	if err := s.sendVerification(ctx, email); err != nil {
		// The account exists; the user can request a fresh link by
		// attempting to sign in.
		s.logger.Warn("verification mail failed", zap.String("email", email), zap.Error(err))
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.registered",
		Message: "account created, verification pending",
		Type:    "AUTH",
	})
	return user, nil
}

func (s *authService) sendVerification(ctx context.Context, email string) error {
	tok, err := s.issuer.Issue(ctx, domain.TokenEmailVerify, email)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", s.cfg.AppBaseURL, tok.Token)
	return s.mail.Send(ctx, email, "Verify your email",
		"Confirm your email address by opening this link:\n\n"+link+"\n\nThe link expires in 24 hours.")
}

// Login verifies credentials and, when required, the two-factor code. An
// unverified email re-issues the verification link before failing, so
// the user always holds a live link.
func (s *authService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	email := normalizeEmail(in.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsOAuthOnly() {
		return nil, autherr.ErrInvalidCredentials
	}

	ok, err := password.Verify(in.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, autherr.ErrInvalidCredentials
	}

	if user.EmailVerifiedAt == nil {
		if err := s.sendVerification(ctx, email); err != nil {
			s.logger.Warn("verification mail failed", zap.String("email", email), zap.Error(err))
		}
		return nil, autherr.ErrEmailUnverified
	}

	if user.TwoFactorEnabled {
		if in.Code == "" {
			if err := s.sendTwoFactorCode(ctx, email); err != nil {
				return nil, err
			}
			return nil, autherr.ErrTwoFactorRequired
		}
		if _, err := s.gate.Submit(ctx, user, in.Code); err != nil {
			return nil, err
		}
		if err := s.gate.Consume(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	sess, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.login",
		Message: "signed in",
		Type:    "AUTH",
	})
	return sess, nil
}

func (s *authService) sendTwoFactorCode(ctx context.Context, email string) error {
	tok, err := s.issuer.Issue(ctx, domain.TokenTwoFactor, email)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, email, "Your sign-in code",
		"Your sign-in code is "+tok.Token+". It expires in 5 minutes.")
}

// VerifyTwoFactor completes the second step of a two-step sign-in.
func (s *authService) VerifyTwoFactor(ctx context.Context, email, code string) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyTwoFactor")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, autherr.ErrTwoFactorInvalid
		}
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, autherr.ErrTwoFactorInvalid
	}

	if _, err := s.gate.Submit(ctx, user, code); err != nil {
		return nil, err
	}
	if err := s.gate.Consume(ctx, user.ID); err != nil {
		return nil, err
	}

	sess, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.login",
		Message: "signed in with two-factor",
		Type:    "AUTH",
	})
	return sess, nil
}

// VerifyEmail consumes a verification token and marks the user verified.
func (s *authService) VerifyEmail(ctx context.Context, tokenValue string) error {
	ctx, span := s.startSpan(ctx, "AuthService.VerifyEmail")
	defer span.End()

	tok, err := s.tokens.GetByToken(ctx, domain.TokenEmailVerify, tokenValue)
	if err != nil {
		return err
	}
	if tok.Expired(time.Now()) {
		_ = s.tokens.Delete(ctx, tok.ID)
		return autherr.ErrNotFound
	}

	user, err := s.users.GetByEmail(ctx, tok.Email)
	if err != nil {
		return err
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, tok.ID); err != nil {
		s.logger.Warn("delete verification token failed", zap.Int64("token_id", tok.ID), zap.Error(err))
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.email-verified",
		Message: "email address verified",
		Type:    "AUTH",
	})
	return nil
}

// RequestPasswordReset issues a reset token and mails the link. Unknown
// emails are treated as success so the endpoint does not reveal which
// addresses have accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := s.startSpan(ctx, "AuthService.RequestPasswordReset")
	defer span.End()

	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.IsOAuthOnly() {
		return nil
	}

	tok, err := s.issuer.Issue(ctx, domain.TokenPasswordReset, email)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/auth/password/reset?token=%s", s.cfg.AppBaseURL, tok.Token)
	if err := s.mail.Send(ctx, email, "Reset your password",
		"Reset your password by opening this link:\n\n"+link+"\n\nThe link expires in 24 hours."); err != nil {
		return err
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.password-reset-requested",
		Message: "password reset requested",
		Type:    "AUTH",
	})
	return nil
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *authService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	if strings.TrimSpace(newPassword) == "" {
		return autherr.ErrInvalidCredentials
	}

	tok, err := s.tokens.GetByToken(ctx, domain.TokenPasswordReset, tokenValue)
	if err != nil {
		return err
	}
	if tok.Expired(time.Now()) {
		_ = s.tokens.Delete(ctx, tok.ID)
		return autherr.ErrNotFound
	}

	user, err := s.users.GetByEmail(ctx, tok.Email)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, tok.ID); err != nil {
		s.logger.Warn("delete reset token failed", zap.Int64("token_id", tok.ID), zap.Error(err))
	}
	if s.limiter != nil {
		s.limiter.Reset(ctx, user.Email)
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.password-reset",
		Message: "password changed via reset link",
		Type:    "AUTH",
	})
	return nil
}

// RefreshSession reissues the session token when the claims were rebuilt,
// sliding the expiry forward. Unchanged claims keep the current token.
func (s *authService) RefreshSession(ctx context.Context, cached session.Claims, force bool) (*Session, bool, error) {
	ctx, span := s.startSpan(ctx, "AuthService.RefreshSession")
	defer span.End()

	claims, rebuilt, err := s.builder.Refresh(ctx, cached, force)
	if err != nil {
		if errors.Is(err, autherr.ErrNotFound) {
			return nil, false, autherr.ErrNoSession
		}
		return nil, false, err
	}
	if !rebuilt {
		return &Session{Claims: claims}, false, nil
	}

	signed, err := s.signer.Sign(ctx, claims)
	if err != nil {
		return nil, false, err
	}
	return &Session{Token: signed, Claims: claims}, true, nil
}

func (s *authService) issueSession(ctx context.Context, userID int64) (*Session, error) {
	claims, err := s.builder.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	signed, err := s.signer.Sign(ctx, claims)
	if err != nil {
		return nil, err
	}
	return &Session{Token: signed, Claims: claims}, nil
}

// StartOAuth returns the provider authorization URL bound to a one-shot
// state key.
func (s *authService) StartOAuth(ctx context.Context, providerName string) (string, error) {
	ctx, span := s.startSpan(ctx, "AuthService.StartOAuth")
	defer span.End()

	provider, ok := s.providers[providerName]
	if !ok {
		return "", autherr.ErrNotFound
	}

	state := uuid.NewString()
	err := s.stateStore.SaveState(ctx, state, cache.OAuthState{
		Provider:    providerName,
		RedirectURI: s.cfg.OAuthRedirectURL,
		CreatedAt:   time.Now().UTC(),
	}, oauthStateTTL)
	if err != nil {
		return "", err
	}

	return provider.AuthorizeURL(s.cfg.OAuthRedirectURL, state), nil
}

// HandleOAuthCallback exchanges the code, links or creates the local user,
// and issues a session. OAuth identities are verified by the provider, so
// the email verification gate does not apply.
func (s *authService) HandleOAuthCallback(ctx context.Context, code, state string) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.HandleOAuthCallback")
	defer span.End()

	stored, err := s.stateStore.GetState(ctx, state)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, autherr.ErrInvalidCredentials
	}
	_ = s.stateStore.DeleteState(ctx, state)

	provider, ok := s.providers[stored.Provider]
	if !ok {
		return nil, autherr.ErrNotFound
	}

	tokens, err := s.provider.ExchangeCode(ctx, provider, code, stored.RedirectURI)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", zap.String("provider", stored.Provider), zap.Error(err))
		return nil, autherr.ErrInvalidCredentials
	}

	info, err := s.provider.FetchUserInfo(ctx, provider, tokens.AccessToken)
	if err != nil {
		s.logger.Warn("oauth userinfo failed", zap.String("provider", stored.Provider), zap.Error(err))
		return nil, autherr.ErrInvalidCredentials
	}
	if info.Subject == "" || info.Email == "" {
		return nil, autherr.ErrInvalidCredentials
	}

	user, err := s.upsertOAuthUser(ctx, stored.Provider, info, tokens)
	if err != nil {
		return nil, err
	}

	sess, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.notifier.Emit(audit.Event{
		ActorID: user.ID,
		Name:    "user.login",
		Message: "signed in with " + stored.Provider,
		Type:    "AUTH",
	})
	return sess, nil
}

func (s *authService) upsertOAuthUser(ctx context.Context, providerName string, info *oauthadapter.UserInfo, tokens *oauthadapter.TokenResponse) (domain.User, error) {
	account, err := s.accounts.GetByProviderID(ctx, providerName, info.Subject)
	if err == nil {
		if err := s.accounts.UpdateTokens(ctx, account.ID, tokens.AccessToken, tokens.RefreshToken); err != nil {
			s.logger.Warn("update oauth tokens failed", zap.Int64("account_id", account.ID), zap.Error(err))
		}
		return s.users.GetByID(ctx, account.UserID)
	}
	if !errors.Is(err, autherr.ErrNotFound) {
		return domain.User{}, err
	}

	email := normalizeEmail(info.Email)
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, autherr.ErrNotFound) {
		user, err = s.users.Create(ctx, domain.User{
			ID:        s.node.Generate().Int64(),
			Email:     email,
			Name:      info.Name,
			AvatarURL: info.Picture,
			Role:      domain.RoleUser,
		})
	}
	if err != nil {
		return domain.User{}, err
	}

	var expiresAt *time.Time
	if tokens.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	if _, err := s.accounts.Create(ctx, domain.Account{
		ID:                s.node.Generate().Int64(),
		UserID:            user.ID,
		Provider:          providerName,
		ProviderAccountID: info.Subject,
		AccessToken:       tokens.AccessToken,
		RefreshToken:      tokens.RefreshToken,
		ExpiresAt:         expiresAt,
	}); err != nil && !errors.Is(err, autherr.ErrDuplicateResource) {
		return domain.User{}, err
	}

	return user, nil
}
