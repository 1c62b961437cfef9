package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/peterlianpi/pcore-auth/internal/adapter/cache"
	oauthadapter "github.com/peterlianpi/pcore-auth/internal/adapter/oauth"
	"github.com/peterlianpi/pcore-auth/internal/audit"
	"github.com/peterlianpi/pcore-auth/internal/bootstrap"
	"github.com/peterlianpi/pcore-auth/internal/config"
	httptransport "github.com/peterlianpi/pcore-auth/internal/http"
	"github.com/peterlianpi/pcore-auth/internal/http/handler"
	"github.com/peterlianpi/pcore-auth/internal/http/middleware"
	"github.com/peterlianpi/pcore-auth/internal/mailer"
	"github.com/peterlianpi/pcore-auth/internal/repository"
	"github.com/peterlianpi/pcore-auth/internal/server"
	"github.com/peterlianpi/pcore-auth/internal/service"
	"github.com/peterlianpi/pcore-auth/internal/session"
	"github.com/peterlianpi/pcore-auth/internal/telemetry"
	"github.com/peterlianpi/pcore-auth/internal/tenant"
	"github.com/peterlianpi/pcore-auth/internal/token"
	"github.com/peterlianpi/pcore-auth/internal/twofactor"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newUserRepository,
			newAccountRepository,
			newTokenRepository,
			newConfirmationRepository,
			newOrgRepository,
			newAuditRepository,
			newKeyRepository,
			newRedisClient,
			newOAuthStateStore,
			newOAuthProviderClient,
			newRateLimiter,
			newTokenIssuer,
			newTwoFactorLimiter,
			newTwoFactorGate,
			newKeyManager,
			newSigner,
			newClaimsBuilder,
			tenant.NewResolver,
			newWebhookSink,
			newNotifier,
			newMailer,
			service.NewAuthService,
			service.NewOrgService,
			newAuthHandler,
			handler.NewOrgHandler,
			newSessionMiddleware,
			newTenantMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureSuperadmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newAccountRepository(pool *pgxpool.Pool) repository.AccountRepository {
	return repository.NewPostgresAccountRepo(pool)
}

func newTokenRepository(pool *pgxpool.Pool) repository.TokenRepository {
	return repository.NewPostgresTokenRepo(pool)
}

func newConfirmationRepository(pool *pgxpool.Pool) repository.ConfirmationRepository {
	return repository.NewPostgresConfirmationRepo(pool)
}

func newOrgRepository(pool *pgxpool.Pool) repository.OrgRepository {
	return repository.NewPostgresOrgRepo(pool)
}

func newAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return repository.NewPostgresAuditRepo(pool)
}

func newKeyRepository(pool *pgxpool.Pool) repository.KeyRepository {
	return repository.NewPostgresKeyRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newOAuthStateStore(client redis.UniversalClient) cacheadapter.StateStore {
	return cacheadapter.NewRedisStateStore(client)
}

func newOAuthProviderClient() oauthadapter.ProviderClient {
	return oauthadapter.NewHTTPProviderClient(nil)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newTokenIssuer(tokens repository.TokenRepository, node *snowflake.Node, cfg config.Config) *token.Issuer {
	return token.NewIssuer(tokens, node, cfg.VerifyTokenTTL, cfg.ResetTokenTTL, cfg.TwoFactorTTL)
}

func newTwoFactorLimiter(client redis.UniversalClient, cfg config.Config) *twofactor.Limiter {
	return twofactor.NewLimiter(client, cfg.TwoFactorTTL, cfg.TwoFactorAttempts)
}

func newTwoFactorGate(tokens repository.TokenRepository, confirmations repository.ConfirmationRepository, limiter *twofactor.Limiter, node *snowflake.Node, logger *zap.Logger) *twofactor.Gate {
	return twofactor.NewGate(tokens, confirmations, limiter, node, logger)
}

func newKeyManager(keys repository.KeyRepository, node *snowflake.Node) *session.KeyManager {
	return session.NewKeyManager(keys, node)
}

func newSigner(manager *session.KeyManager, cfg config.Config) *session.Signer {
	return session.NewSigner(manager, cfg.SessionTTL)
}

func newClaimsBuilder(users repository.UserRepository, accounts repository.AccountRepository, cfg config.Config, logger *zap.Logger) *session.Builder {
	return session.NewBuilder(users, accounts, cfg.ClaimsStaleAfter, logger)
}

func newWebhookSink(repo repository.AuditRepository, logger *zap.Logger) *audit.WebhookSink {
	return audit.NewWebhookSink(repo, logger)
}

func newNotifier(lc fx.Lifecycle, repo repository.AuditRepository, sink *audit.WebhookSink, node *snowflake.Node, cfg config.Config, logger *zap.Logger) *audit.Notifier {
	notifier := audit.NewNotifier(repo, sink, node, cfg.AuditBufferSize, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			notifier.Close()
			return nil
		},
	})
	return notifier
}

func newMailer(cfg config.Config, logger *zap.Logger) mailer.Sender {
	if cfg.SMTPHost == "" {
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
}

func newAuthHandler(auth service.AuthService, cfg config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(auth, int(cfg.SessionTTL.Seconds()))
}

func newSessionMiddleware(signer *session.Signer) *middleware.Session {
	return &middleware.Session{Signer: signer}
}

func newTenantMiddleware(resolver *tenant.Resolver) *middleware.Tenant {
	return &middleware.Tenant{Resolver: resolver}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil && err != http.ErrServerClosed {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
