package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/session"
)

const claimsKey = "sessionClaims"

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "pcore_session"

// Session validates the bearer token or session cookie and attaches its
// claims to the request.
type Session struct {
	Signer *session.Signer
}

// Require aborts with 401 when no valid session is present.
func (m *Session) Require(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		abortWithError(c, autherr.ErrNoSession)
		return
	}

	claims, err := m.Signer.Validate(c.Request.Context(), token)
	if err != nil || !claims.Complete() {
		abortWithError(c, autherr.ErrNoSession)
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

// GetClaims exposes the validated session claims to handlers.
func GetClaims(c *gin.Context) (session.Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return session.Claims{}, false
	}
	claims, ok := value.(session.Claims)
	return claims, ok
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(autherr.Status(err), gin.H{
		"error": autherr.Message(err),
		"code":  autherr.Code(err),
	})
}
