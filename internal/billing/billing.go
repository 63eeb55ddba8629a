// Package billing connects organizations to Stripe subscriptions using
// the graduated seat pricing engine. The subscription record tracks the
// last seat count that was pushed to Stripe so that syncs are cheap
// no-ops when nothing changed.
package billing

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrSubNotFound   = errors.New("billing: subscription not found")
	ErrNoCustomer    = errors.New("billing: organization has no stripe customer")
	ErrStripe        = errors.New("billing: stripe request failed")
	ErrStripeAuth    = errors.New("billing: stripe authentication failed")
	ErrStripeInvalid = errors.New("billing: stripe rejected request")
)

// SubStatus mirrors the Stripe subscription status we care about.
type SubStatus string

const (
	StatusIncomplete SubStatus = "incomplete"
	StatusActive     SubStatus = "active"
	StatusPastDue    SubStatus = "past_due"
	StatusCanceled   SubStatus = "canceled"
)

// Subscription is the billing record for one organization. SeatCount is
// the last quantity successfully reconciled with Stripe, not the live
// member count.
type Subscription struct {
	OrgID                string    `json:"orgId"`
	StripeCustomerID     string    `json:"stripeCustomerId"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId"`
	Status               SubStatus `json:"status"`
	SeatCount            int       `json:"seatCount"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Store persists subscription records.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, orgID string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
}
