package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-labs/koinonia/internal/pricing"
)

// Handler provides HTTP endpoints for billing.
type Handler struct {
	svc        *Service
	seats      func(c *gin.Context, orgID string) (int, error)
	successURL string
	cancelURL  string
	portalURL  string
}

// NewHandler creates a billing handler. seatFn resolves an org's live
// member count and is used when a request does not pin a seat count.
func NewHandler(svc *Service, seatFn func(c *gin.Context, orgID string) (int, error), successURL, cancelURL, portalReturnURL string) *Handler {
	return &Handler{svc: svc, seats: seatFn, successURL: successURL, cancelURL: cancelURL, portalURL: portalReturnURL}
}

// RegisterRoutes sets up billing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/pricing/tiers", h.GetTiers)
	r.GET("/pricing/breakdown", h.GetBreakdown)
	r.POST("/orgs/:id/billing/checkout", h.Checkout)
	r.POST("/orgs/:id/billing/activate", h.Activate)
	r.GET("/orgs/:id/billing/subscription", h.GetSubscription)
	r.POST("/orgs/:id/billing/sync", h.Sync)
	r.POST("/orgs/:id/billing/portal", h.Portal)
}

// GetTiers handles GET /v1/pricing/tiers.
func (h *Handler) GetTiers(c *gin.Context) {
	cfg := h.svc.Config()
	c.JSON(http.StatusOK, gin.H{
		"flatFeeCents": cfg.FlatFeeCents,
		"freeSeats":    cfg.FreeSeats,
		"tiers":        cfg.Tiers,
	})
}

// GetBreakdown handles GET /v1/pricing/breakdown?seats=N. When orgId is
// given instead of seats, the org's live member count is used.
func (h *Handler) GetBreakdown(c *gin.Context) {
	var seats int
	switch {
	case c.Query("seats") != "":
		n, err := strconv.Atoi(c.Query("seats"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_seats", "message": "seats must be an integer"})
			return
		}
		seats = n
	case c.Query("orgId") != "":
		n, err := h.seats(c, c.Query("orgId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		seats = n
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "seats or orgId required"})
		return
	}

	bd, err := h.svc.Breakdown(seats)
	if err != nil {
		if errors.Is(err, pricing.ErrNegativeSeats) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_seats", "message": "seats must not be negative"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to compute breakdown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"breakdown":      bd,
		"totalFormatted": pricing.FormatCents(bd.TotalCents),
	})
}

// Checkout handles POST /v1/orgs/:id/billing/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	orgID := c.Param("id")

	var req struct {
		Seats      *int   `json:"seats"`
		SuccessURL string `json:"successUrl"`
		CancelURL  string `json:"cancelUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	seats := 0
	if req.Seats != nil {
		seats = *req.Seats
	} else {
		n, err := h.seats(c, orgID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		seats = n
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = h.successURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = h.cancelURL
	}

	url, err := h.svc.Checkout(c.Request.Context(), orgID, seats, successURL, cancelURL)
	if err != nil {
		h.writeError(c, err, "failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Activate handles POST /v1/orgs/:id/billing/activate. Called after a
// completed checkout to record the resulting Stripe subscription so
// seat syncs have something to reconcile against.
func (h *Handler) Activate(c *gin.Context) {
	orgID := c.Param("id")

	var req struct {
		SubscriptionID string `json:"subscriptionId" binding:"required"`
		Seats          *int   `json:"seats"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "subscriptionId required"})
		return
	}

	seats := 0
	if req.Seats != nil {
		seats = *req.Seats
	} else {
		n, err := h.seats(c, orgID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		seats = n
	}

	sub, err := h.svc.ActivateSubscription(c.Request.Context(), orgID, req.SubscriptionID, seats)
	if err != nil {
		if errors.Is(err, ErrSubNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no checkout on record for organization"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to activate subscription"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// GetSubscription handles GET /v1/orgs/:id/billing/subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.svc.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSubNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no subscription for organization"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Sync handles POST /v1/orgs/:id/billing/sync. Forces a reconciliation
// against the live member count, for operators recovering from a missed
// sync.
func (h *Handler) Sync(c *gin.Context) {
	orgID := c.Param("id")

	seats, err := h.seats(c, orgID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
		return
	}

	if err := h.svc.SyncSeats(c.Request.Context(), orgID, seats); err != nil {
		h.writeError(c, err, "seat sync failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"orgId": orgID, "seats": seats})
}

// Portal handles POST /v1/orgs/:id/billing/portal.
func (h *Handler) Portal(c *gin.Context) {
	url, err := h.svc.PortalURL(c.Request.Context(), c.Param("id"), h.portalURL)
	if err != nil {
		if errors.Is(err, ErrSubNotFound) || errors.Is(err, ErrNoCustomer) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no billing account for organization"})
			return
		}
		h.writeError(c, err, "failed to create portal session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, pricing.ErrNegativeSeats):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_seats", "message": "seats must not be negative"})
	case errors.Is(err, ErrSubNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no subscription for organization"})
	case errors.Is(err, ErrStripeAuth), errors.Is(err, ErrStripeInvalid), errors.Is(err, ErrStripe):
		c.JSON(http.StatusBadGateway, gin.H{"error": "stripe_error", "message": msg})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": msg})
	}
}
