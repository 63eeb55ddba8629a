package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/koinonia-labs/koinonia/internal/circuitbreaker"
	"github.com/koinonia-labs/koinonia/internal/idgen"
	"github.com/koinonia-labs/koinonia/internal/metrics"
	"github.com/koinonia-labs/koinonia/internal/pricing"
	"github.com/koinonia-labs/koinonia/internal/retry"
)

// Client abstracts the Stripe API surface the billing service needs.
// Tests inject a fake; production uses stripeClient.
type Client interface {
	CreateCustomer(ctx context.Context, name, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID string, items []pricing.LineItem, successURL, cancelURL string) (string, error)
	SubscriptionItems(ctx context.Context, subID string) ([]pricing.ExistingItem, error)
	ApplyItemChanges(ctx context.Context, subID string, changes []pricing.ItemChange) error
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

const (
	stripeMaxAttempts = 3
	stripeBaseDelay   = 200 * time.Millisecond
)

// stripeClient talks to the real Stripe API. Transient failures retry
// with backoff; repeated failures trip a per-operation circuit so an
// outage does not pile up blocked requests.
type stripeClient struct {
	api     *client.API
	breaker *circuitbreaker.Breaker
}

// NewStripeClient creates a Client backed by the Stripe API.
func NewStripeClient(secretKey string) Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeClient{
		api:     api,
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// call runs one Stripe operation through the circuit breaker and retry
// loop. fn returns the raw SDK error; call maps it to domain sentinels.
func (s *stripeClient) call(ctx context.Context, op string, fn func() error) error {
	if !s.breaker.Allow(op) {
		metrics.StripeCallsTotal.WithLabelValues(op, "rejected").Inc()
		return fmt.Errorf("%w: circuit open for %s", ErrStripe, op)
	}

	err := retry.Do(ctx, stripeMaxAttempts, stripeBaseDelay, func() error {
		if err := fn(); err != nil {
			mapped := mapStripeError(err)
			// Bad credentials and malformed requests never succeed on retry.
			if errors.Is(mapped, ErrStripeAuth) || errors.Is(mapped, ErrStripeInvalid) {
				return retry.Permanent(mapped)
			}
			return mapped
		}
		return nil
	})
	if err != nil {
		// Caller mistakes don't indicate a Stripe outage, so they
		// don't count against the circuit.
		if !errors.Is(err, ErrStripeInvalid) {
			s.breaker.RecordFailure(op)
		}
		metrics.StripeCallsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	s.breaker.RecordSuccess(op)
	metrics.StripeCallsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *stripeClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx
	// One key across retry attempts so Stripe dedupes them.
	params.IdempotencyKey = stripe.String(idgen.Hex(16))

	var id string
	err := s.call(ctx, "create_customer", func() error {
		cust, err := s.api.Customers.New(params)
		if err != nil {
			return err
		}
		id = cust.ID
		return nil
	})
	return id, err
}

func (s *stripeClient) CreateCheckoutSession(ctx context.Context, customerID string, items []pricing.LineItem, successURL, cancelURL string) (string, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(item.PriceID),
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(customerID),
		LineItems:  lineItems,
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idgen.Hex(16))

	var url string
	err := s.call(ctx, "create_checkout", func() error {
		sess, err := s.api.CheckoutSessions.New(params)
		if err != nil {
			return err
		}
		url = sess.URL
		return nil
	})
	return url, err
}

func (s *stripeClient) SubscriptionItems(ctx context.Context, subID string) ([]pricing.ExistingItem, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	var items []pricing.ExistingItem
	err := s.call(ctx, "get_subscription", func() error {
		sub, err := s.api.Subscriptions.Get(subID, params)
		if err != nil {
			return err
		}
		items = make([]pricing.ExistingItem, 0, len(sub.Items.Data))
		for _, it := range sub.Items.Data {
			items = append(items, pricing.ExistingItem{
				ItemID:   it.ID,
				PriceID:  it.Price.ID,
				Quantity: it.Quantity,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ApplyItemChanges submits every insert, update and deletion in one
// subscription update so Stripe applies them atomically with proration.
func (s *stripeClient) ApplyItemChanges(ctx context.Context, subID string, changes []pricing.ItemChange) error {
	if len(changes) == 0 {
		return nil
	}

	itemParams := make([]*stripe.SubscriptionItemsParams, 0, len(changes))
	for _, ch := range changes {
		p := &stripe.SubscriptionItemsParams{}
		if ch.ItemID != "" {
			p.ID = stripe.String(ch.ItemID)
		}
		if ch.Deleted {
			p.Deleted = stripe.Bool(true)
		} else {
			p.Price = stripe.String(ch.PriceID)
			p.Quantity = stripe.Int64(ch.Quantity)
		}
		itemParams = append(itemParams, p)
	}

	params := &stripe.SubscriptionParams{
		Items:             itemParams,
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idgen.Hex(16))

	return s.call(ctx, "update_subscription", func() error {
		_, err := s.api.Subscriptions.Update(subID, params)
		return err
	})
}

func (s *stripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	var url string
	err := s.call(ctx, "create_portal", func() error {
		sess, err := s.api.BillingPortalSessions.New(params)
		if err != nil {
			return err
		}
		url = sess.URL
		return nil
	})
	return url, err
}

// mapStripeError translates stripe-go errors into domain sentinels so
// callers never import the Stripe SDK. The SDK has no authentication
// error type; a 401 is the signal for bad credentials.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", ErrStripe, err)
	}
	if stripeErr.HTTPStatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrStripeAuth, stripeErr.Msg)
	}
	if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		return fmt.Errorf("%w: %s", ErrStripeInvalid, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s", ErrStripe, stripeErr.Msg)
}
