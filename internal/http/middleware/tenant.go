package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/tenant"
)

const (
	orgIDKey   = "tenantOrgID"
	orgRoleKey = "tenantOrgRole"
)

// Tenant resolves the caller's role in the target org before any
// org-scoped handler runs.
type Tenant struct {
	Resolver *tenant.Resolver
}

// Require reads the org id from the route param (falling back to the
// X-Org-ID header), checks active membership, and attaches the resolved
// role. Runs after Session.
func (m *Tenant) Require(c *gin.Context) {
	claims, ok := GetClaims(c)
	if !ok {
		abortWithError(c, autherr.ErrNoSession)
		return
	}

	raw := c.Param("orgID")
	if raw == "" {
		raw = c.GetHeader("X-Org-ID")
	}
	orgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orgID == 0 {
		abortWithError(c, autherr.ErrMissingOrg)
		return
	}

	role, err := m.Resolver.Resolve(c.Request.Context(), claims.UserID, orgID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Set(orgIDKey, orgID)
	c.Set(orgRoleKey, role)
	c.Next()
}

// GetOrgID returns the resolved org id.
func GetOrgID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(orgIDKey)
	if !ok {
		return 0, false
	}
	orgID, ok := value.(int64)
	return orgID, ok
}

// GetOrgRole returns the caller's resolved role in the target org.
func GetOrgRole(c *gin.Context) (domain.OrgRole, bool) {
	value, ok := c.Get(orgRoleKey)
	if !ok {
		return "", false
	}
	role, ok := value.(domain.OrgRole)
	return role, ok
}
