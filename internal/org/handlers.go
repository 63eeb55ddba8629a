package org

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-labs/koinonia/internal/idgen"
	"github.com/koinonia-labs/koinonia/internal/logging"
	"github.com/koinonia-labs/koinonia/internal/validation"
)

// Handler provides HTTP endpoints for organization and member management.
type Handler struct {
	store  Store
	syncer SeatSyncer
}

// NewHandler creates a new org handler. syncer may be nil when billing
// is not configured (development mode).
func NewHandler(store Store, syncer SeatSyncer) *Handler {
	return &Handler{store: store, syncer: syncer}
}

// RegisterRoutes sets up organization routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orgs", h.CreateOrg)
	r.GET("/orgs/:id", h.GetOrg)
	r.PATCH("/orgs/:id", h.UpdateOrg)
	r.GET("/orgs/:id/members", h.ListMembers)
	r.POST("/orgs/:id/members", h.AddMember)
	r.DELETE("/orgs/:id/members/:memberId", h.RemoveMember)
}

// CreateOrg handles POST /v1/orgs.
func (h *Handler) CreateOrg(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Slug string `json:"slug" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and slug required"})
		return
	}

	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !validation.IsValidSlug(req.Slug) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_slug",
			"message": "slug must be 3-64 lowercase alphanumeric/hyphens, start/end with alphanumeric",
		})
		return
	}

	now := time.Now()
	o := &Organization{
		ID:        idgen.WithPrefix("org_"),
		Name:      validation.SanitizeString(req.Name, 200),
		Slug:      req.Slug,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateOrg(c.Request.Context(), o); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "slug_taken", "message": "slug already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, o)
}

// GetOrg handles GET /v1/orgs/:id. Accepts either an org ID or a slug.
func (h *Handler) GetOrg(c *gin.Context) {
	id := c.Param("id")

	o, err := h.store.GetOrg(c.Request.Context(), id)
	if errors.Is(err, ErrOrgNotFound) {
		o, err = h.store.GetOrgBySlug(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, ErrOrgNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load organization"})
		return
	}

	seats, err := h.store.CountMembers(c.Request.Context(), o.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to count members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"organization": o, "seatCount": seats})
}

// UpdateOrg handles PATCH /v1/orgs/:id.
func (h *Handler) UpdateOrg(c *gin.Context) {
	var req struct {
		Name   *string `json:"name"`
		Status *Status `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	o, err := h.store.GetOrg(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrgNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load organization"})
		return
	}

	if req.Name != nil {
		o.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Status != nil {
		switch *req.Status {
		case StatusActive, StatusSuspended, StatusCancelled:
			o.Status = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "unknown status"})
			return
		}
	}
	o.UpdatedAt = time.Now()

	if err := h.store.UpdateOrg(c.Request.Context(), o); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to update organization"})
		return
	}

	c.JSON(http.StatusOK, o)
}

// ListMembers handles GET /v1/orgs/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := h.store.GetOrg(c.Request.Context(), orgID); err != nil {
		if errors.Is(err, ErrOrgNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load organization"})
		return
	}

	members, err := h.store.ListMembers(c.Request.Context(), orgID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list members"})
		return
	}
	total, err := h.store.CountMembers(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to count members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members": members,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// AddMember handles POST /v1/orgs/:id/members. After the member is
// persisted the subscription's seat quantity is reconciled; a sync
// failure is logged but does not roll back the membership.
func (h *Handler) AddMember(c *gin.Context) {
	orgID := c.Param("id")

	var req struct {
		Email string `json:"email" binding:"required"`
		Name  string `json:"name" binding:"required"`
		Role  Role   `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email and name required"})
		return
	}

	email := validation.NormalizeEmail(req.Email)
	if !validation.IsValidEmail(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_email", "message": "invalid email address"})
		return
	}
	if req.Role == "" {
		req.Role = RoleMember
	}
	if req.Role != RoleAdmin && req.Role != RoleMember {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "message": "unknown role"})
		return
	}

	m := &Member{
		ID:        idgen.WithPrefix("mem_"),
		OrgID:     orgID,
		Email:     email,
		Name:      validation.SanitizeString(req.Name, 200),
		Role:      req.Role,
		CreatedAt: time.Now(),
	}

	if err := h.store.AddMember(c.Request.Context(), m); err != nil {
		switch {
		case errors.Is(err, ErrOrgNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
		case errors.Is(err, ErrMemberExists):
			c.JSON(http.StatusConflict, gin.H{"error": "member_exists", "message": "email already registered in this organization"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to add member"})
		}
		return
	}

	if warning := h.syncSeats(c, orgID); warning != "" {
		c.JSON(http.StatusCreated, gin.H{"member": m, "warning": warning})
		return
	}
	c.JSON(http.StatusCreated, m)
}

// RemoveMember handles DELETE /v1/orgs/:id/members/:memberId.
func (h *Handler) RemoveMember(c *gin.Context) {
	orgID := c.Param("id")
	memberID := c.Param("memberId")

	if err := h.store.RemoveMember(c.Request.Context(), orgID, memberID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to remove member"})
		return
	}

	h.syncSeats(c, orgID)
	c.Status(http.StatusNoContent)
}

// syncSeats pushes the current member count to billing and returns a
// client-facing warning when that fails. Membership is the source of
// truth; Stripe catches up on the next sync.
func (h *Handler) syncSeats(c *gin.Context, orgID string) string {
	if h.syncer == nil {
		return ""
	}
	ctx := c.Request.Context()
	seats, err := h.store.CountMembers(ctx, orgID)
	if err != nil {
		logging.L(ctx).Warn("seat count failed after membership change", "org_id", orgID, "error", err)
		return "seat count unavailable; billing will reconcile on the next sync"
	}
	if err := h.syncer.SyncSeats(ctx, orgID, seats); err != nil {
		logging.L(ctx).Warn("seat sync failed", "org_id", orgID, "seats", seats, "error", err)
		return "billing seat sync failed; quantity will be reconciled on the next sync"
	}
	return ""
}
