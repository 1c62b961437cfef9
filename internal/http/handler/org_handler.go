package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/peterlianpi/pcore-auth/internal/autherr"
	"github.com/peterlianpi/pcore-auth/internal/domain"
	"github.com/peterlianpi/pcore-auth/internal/http/middleware"
	"github.com/peterlianpi/pcore-auth/internal/service"
)

// OrgHandler serves organization and membership management endpoints.
type OrgHandler struct {
	Orgs service.OrgService
}

// NewOrgHandler constructs the handler.
func NewOrgHandler(orgs service.OrgService) *OrgHandler {
	return &OrgHandler{Orgs: orgs}
}

type createOrgRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// Create creates an organization with the caller as OWNER.
func (h *OrgHandler) Create(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respondError(c, autherr.ErrNoSession)
		return
	}

	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and type are required", "code": "bad_request"})
		return
	}

	org, err := h.Orgs.CreateOrg(c.Request.Context(), claims.UserID, req.Name, domain.OrgType(req.Type))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":   org.ID,
		"name": org.Name,
		"type": org.Type,
	})
}

// ListMembers returns the org member list.
func (h *OrgHandler) ListMembers(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	orgID, ok := middleware.GetOrgID(c)
	if !ok {
		respondError(c, autherr.ErrMissingOrg)
		return
	}

	members, err := h.Orgs.ListMembers(c.Request.Context(), claims.UserID, orgID)
	if err != nil {
		respondError(c, err)
		return
	}

	body := make([]gin.H, 0, len(members))
	for _, m := range members {
		body = append(body, gin.H{
			"user_id":    m.UserID,
			"role":       m.Role,
			"status":     m.Status,
			"joined_at":  m.JoinedAt,
			"removed_at": m.RemovedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"members": body})
}

type addMemberRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

// AddMember joins a user to the org.
func (h *OrgHandler) AddMember(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	orgID, ok := middleware.GetOrgID(c)
	if !ok {
		respondError(c, autherr.ErrMissingOrg)
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and role are required", "code": "bad_request"})
		return
	}

	m, err := h.Orgs.AddMember(c.Request.Context(), claims.UserID, orgID, req.UserID, domain.OrgRole(req.Role))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id": m.UserID,
		"role":    m.Role,
		"status":  m.Status,
	})
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeRole updates a member's role.
func (h *OrgHandler) ChangeRole(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	orgID, ok := middleware.GetOrgID(c)
	if !ok {
		respondError(c, autherr.ErrMissingOrg)
		return
	}

	targetID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id", "code": "bad_request"})
		return
	}

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required", "code": "bad_request"})
		return
	}

	if err := h.Orgs.ChangeRole(c.Request.Context(), claims.UserID, orgID, targetID, domain.OrgRole(req.Role)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// RemoveMember revokes a membership.
func (h *OrgHandler) RemoveMember(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	orgID, ok := middleware.GetOrgID(c)
	if !ok {
		respondError(c, autherr.ErrMissingOrg)
		return
	}

	targetID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id", "code": "bad_request"})
		return
	}

	if err := h.Orgs.RemoveMember(c.Request.Context(), claims.UserID, orgID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}
