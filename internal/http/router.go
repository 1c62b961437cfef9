// Package http wires the gin router for the auth service.
package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/peterlianpi/pcore-auth/internal/config"
	"github.com/peterlianpi/pcore-auth/internal/http/handler"
	"github.com/peterlianpi/pcore-auth/internal/http/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	orgHandler *handler.OrgHandler,
	sessionMiddleware *middleware.Session,
	tenantMiddleware *middleware.Tenant,
	rateLimiter *middleware.RateLimiter,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/2fa/verify", authHandler.VerifyTwoFactor)
		authGroup.POST("/verify-email", authHandler.VerifyEmail)
		authGroup.GET("/verify-email", authHandler.VerifyEmail)

		password := authGroup.Group("/password")
		{
			password.POST("/forgot", authHandler.ForgotPassword)
			password.POST("/reset", authHandler.ResetPassword)
		}

		authGroup.GET("/session", sessionMiddleware.Require, authHandler.Session)
		authGroup.GET("/me", sessionMiddleware.Require, authHandler.Me)

		authGroup.GET("/oauth/start", authHandler.StartOAuth)
		authGroup.GET("/oauth/callback", authHandler.OAuthCallback)
	}

	orgs := r.Group("/orgs", sessionMiddleware.Require)
	{
		orgs.POST("", orgHandler.Create)

		scoped := orgs.Group("/:orgID", tenantMiddleware.Require)
		{
			scoped.GET("/members", orgHandler.ListMembers)
			scoped.POST("/members", orgHandler.AddMember)
			scoped.PATCH("/members/:userID/role", orgHandler.ChangeRole)
			scoped.DELETE("/members/:userID", orgHandler.RemoveMember)
		}
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
