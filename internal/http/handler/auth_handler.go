// Package handler exposes the HTTP surface over the auth and org
// services.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/http/middleware"
	"github.com/peterlianpi/pcore-auth/internal/service"
	"github.com/peterlianpi/pcore-auth/internal/session"
)

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	Auth       service.AuthService
	SessionTTL int
}

// NewAuthHandler constructs the handler. sessionTTLSeconds bounds the
// session cookie lifetime.
func NewAuthHandler(auth service.AuthService, sessionTTLSeconds int) *AuthHandler {
	return &AuthHandler{Auth: auth, SessionTTL: sessionTTLSeconds}
}

func respondError(c *gin.Context, err error) {
	c.JSON(autherr.Status(err), gin.H{
		"error": autherr.Message(err),
		"code":  autherr.Code(err),
	})
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// Register creates an account and mails the verification link.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required", "code": "bad_request"})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code"`
}

// Login signs the user in, optionally completing two-factor inline.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required", "code": "bad_request"})
		return
	}

	sess, err := h.Auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, sess)
}

type twoFactorRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyTwoFactor completes a two-step sign-in.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req twoFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required", "code": "bad_request"})
		return
	}

	sess, err := h.Auth.VerifyTwoFactor(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, sess)
}

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmail consumes a verification link token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Token = c.Query("token")
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required", "code": "bad_request"})
		return
	}

	if err := h.Auth.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ForgotPassword issues a reset link. The response does not reveal
// whether the address has an account.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required", "code": "bad_request"})
		return
	}

	if err := h.Auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPassword consumes a reset link token and sets the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and password are required", "code": "bad_request"})
		return
	}

	if err := h.Auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// Session validates the current session and slides it forward when the
// cached claims went stale. A reissued token is returned and re-set as
// the cookie.
func (h *AuthHandler) Session(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respondError(c, autherr.ErrNoSession)
		return
	}

	sess, refreshed, err := h.Auth.RefreshSession(c.Request.Context(), claims, false)
	if err != nil {
		respondError(c, err)
		return
	}

	if refreshed {
		h.setSessionCookie(c, sess.Token)
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      claimsBody(sess.Claims),
		"refreshed": refreshed,
		"token":     sess.Token,
	})
}

// Me returns the cached session claims without touching storage.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respondError(c, autherr.ErrNoSession)
		return
	}
	c.JSON(http.StatusOK, claimsBody(claims))
}

// StartOAuth redirects to the provider authorization URL.
func (h *AuthHandler) StartOAuth(c *gin.Context) {
	provider := c.DefaultQuery("provider", "google")

	redirect, err := h.Auth.StartOAuth(c.Request.Context(), provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

// OAuthCallback completes the provider round trip and issues a session.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required", "code": "bad_request"})
		return
	}

	sess, err := h.Auth.HandleOAuthCallback(c.Request.Context(), code, state)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondSession(c, sess)
}

func (h *AuthHandler) respondSession(c *gin.Context, sess *service.Session) {
	h.setSessionCookie(c, sess.Token)
	c.JSON(http.StatusOK, gin.H{
		"token": sess.Token,
		"user":  claimsBody(sess.Claims),
	})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, h.SessionTTL, "/", "", false, true)
}

func claimsBody(claims session.Claims) gin.H {
	return gin.H{
		"id":                 claims.UserID,
		"name":               claims.Name,
		"email":              claims.Email,
		"role":               claims.Role,
		"two_factor_enabled": claims.TwoFactorEnabled,
		"is_oauth":           claims.IsOAuth,
		"default_org_id":     claims.DefaultOrgID,
		"picture":            claims.AvatarURL,
	}
}
