package messages

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-labs/koinonia/internal/idgen"
	"github.com/koinonia-labs/koinonia/internal/metrics"
	"github.com/koinonia-labs/koinonia/internal/pagination"
	"github.com/koinonia-labs/koinonia/internal/validation"
)

const defaultPageSize = 50

// Handler provides HTTP endpoints for channels and messages.
type Handler struct {
	store Store
}

// NewHandler creates a new messages handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up message routes under an org scope.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/orgs/:id/channels", h.CreateChannel)
	r.GET("/orgs/:id/channels", h.ListChannels)
	r.POST("/orgs/:id/channels/:channelId/messages", h.PostMessage)
	r.GET("/orgs/:id/channels/:channelId/messages", h.ListMessages)
	r.PATCH("/orgs/:id/channels/:channelId/messages/:messageId", h.EditMessage)
	r.DELETE("/orgs/:id/channels/:channelId/messages/:messageId", h.DeleteMessage)
}

// CreateChannel handles POST /v1/orgs/:id/channels.
func (h *Handler) CreateChannel(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Topic string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_name", "message": "channel name must be 1-100 characters"})
		return
	}

	ch := &Channel{
		ID:        idgen.WithPrefix("ch_"),
		OrgID:     c.Param("id"),
		Name:      name,
		Topic:     validation.SanitizeString(req.Topic, 500),
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateChannel(c.Request.Context(), ch); err != nil {
		if errors.Is(err, ErrChannelExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "channel_exists", "message": "channel name already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create channel"})
		return
	}

	c.JSON(http.StatusCreated, ch)
}

// ListChannels handles GET /v1/orgs/:id/channels.
func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.store.ListChannels(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list channels"})
		return
	}
	if channels == nil {
		channels = []*Channel{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// PostMessage handles POST /v1/orgs/:id/channels/:channelId/messages.
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		AuthorID string `json:"authorId" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "authorId and body required"})
		return
	}

	body := validation.SanitizeString(req.Body, validation.MaxMessageLength)
	if strings.TrimSpace(body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "message body must not be empty"})
		return
	}

	orgID := c.Param("id")
	channelID := c.Param("channelId")
	if _, err := h.store.GetChannel(c.Request.Context(), orgID, channelID); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load channel"})
		return
	}

	m := &Message{
		ID:        idgen.WithPrefix("msg_"),
		ChannelID: channelID,
		OrgID:     orgID,
		AuthorID:  req.AuthorID,
		Body:      body,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateMessage(c.Request.Context(), m); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to post message"})
		return
	}

	metrics.MessagesPostedTotal.Inc()
	c.JSON(http.StatusCreated, m)
}

// ListMessages handles GET /v1/orgs/:id/channels/:channelId/messages.
// Pages backwards in time with an opaque ?cursor= and ?limit=N.
func (h *Handler) ListMessages(c *gin.Context) {
	orgID := c.Param("id")
	channelID := c.Param("channelId")

	if _, err := h.store.GetChannel(c.Request.Context(), orgID, channelID); err != nil {
		if errors.Is(err, ErrChannelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "channel not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load channel"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > 200 {
		limit = defaultPageSize
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is not valid"})
		return
	}
	var (
		before   time.Time
		beforeID string
	)
	if cursor != nil {
		before = cursor.CreatedAt
		beforeID = cursor.ID
	}

	// Fetch one extra row to learn whether another page exists.
	msgs, err := h.store.ListMessages(c.Request.Context(), channelID, before, beforeID, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list messages"})
		return
	}

	msgs, next, hasMore := pagination.ComputePage(msgs, limit, func(m *Message) (time.Time, string) {
		return m.CreatedAt, m.ID
	})
	if msgs == nil {
		msgs = []*Message{}
	}

	resp := gin.H{"messages": msgs, "limit": limit, "hasMore": hasMore}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// EditMessage handles PATCH .../messages/:messageId. Only the author
// may edit.
func (h *Handler) EditMessage(c *gin.Context) {
	var req struct {
		AuthorID string `json:"authorId" binding:"required"`
		Body     string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "authorId and body required"})
		return
	}

	body := validation.SanitizeString(req.Body, validation.MaxMessageLength)
	if strings.TrimSpace(body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "message body must not be empty"})
		return
	}

	channelID := c.Param("channelId")
	m, err := h.store.GetMessage(c.Request.Context(), channelID, c.Param("messageId"))
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load message"})
		return
	}

	if m.AuthorID != req.AuthorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "only the author may edit a message"})
		return
	}

	now := time.Now()
	m.Body = body
	m.EditedAt = &now

	if err := h.store.UpdateMessage(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to edit message"})
		return
	}

	c.JSON(http.StatusOK, m)
}

// DeleteMessage handles DELETE .../messages/:messageId.
func (h *Handler) DeleteMessage(c *gin.Context) {
	channelID := c.Param("channelId")
	if err := h.store.DeleteMessage(c.Request.Context(), channelID, c.Param("messageId")); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to delete message"})
		return
	}
	c.Status(http.StatusNoContent)
}
