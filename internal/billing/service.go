package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/koinonia-labs/koinonia/internal/logging"
	"github.com/koinonia-labs/koinonia/internal/metrics"
	"github.com/koinonia-labs/koinonia/internal/pricing"
	"github.com/koinonia-labs/koinonia/internal/syncutil"
	"github.com/koinonia-labs/koinonia/internal/traces"
)

// OrgInfo is the slice of organization data billing needs to create a
// Stripe customer. Satisfied by the org package's store.
type OrgInfo interface {
	GetOrg(ctx context.Context, id string) (*OrgRecord, error)
}

// OrgRecord carries the fields billing reads from an organization.
type OrgRecord struct {
	ID    string
	Name  string
	Email string
}

// Service coordinates the pricing engine, the subscription store, and
// the Stripe client.
type Service struct {
	cfg    pricing.Config
	prices pricing.PriceTable
	store  Store
	client Client
	orgs   OrgInfo
	locks  *syncutil.KeyedMutex
}

// NewService creates a billing service.
func NewService(cfg pricing.Config, prices pricing.PriceTable, store Store, client Client, orgs OrgInfo) *Service {
	return &Service{
		cfg:    cfg,
		prices: prices,
		store:  store,
		client: client,
		orgs:   orgs,
		locks:  syncutil.NewKeyedMutex(),
	}
}

// Config returns the pricing configuration the service bills against.
func (s *Service) Config() pricing.Config { return s.cfg }

// Breakdown computes the cost breakdown for a seat count without
// touching Stripe or the store.
func (s *Service) Breakdown(totalSeats int) (pricing.Breakdown, error) {
	return s.cfg.Breakdown(totalSeats)
}

// GetSubscription returns the stored subscription record for an org.
func (s *Service) GetSubscription(ctx context.Context, orgID string) (*Subscription, error) {
	return s.store.Get(ctx, orgID)
}

// Checkout ensures the org has a Stripe customer and creates a
// subscription-mode checkout session priced for the given seat count.
func (s *Service) Checkout(ctx context.Context, orgID string, seats int, successURL, cancelURL string) (string, error) {
	ctx, span := traces.StartSpan(ctx, "billing.checkout",
		attribute.String("org.id", orgID),
		attribute.Int("seats", seats),
	)
	defer span.End()

	items, err := pricing.BuildLineItems(s.cfg, s.prices, seats)
	if err != nil {
		return "", err
	}

	sub, err := s.store.Get(ctx, orgID)
	if err != nil && !errors.Is(err, ErrSubNotFound) {
		return "", err
	}

	var customerID string
	if sub != nil && sub.StripeCustomerID != "" {
		customerID = sub.StripeCustomerID
	} else {
		rec, err := s.orgs.GetOrg(ctx, orgID)
		if err != nil {
			return "", err
		}
		customerID, err = s.client.CreateCustomer(ctx, rec.Name, rec.Email)
		if err != nil {
			return "", err
		}
		now := time.Now()
		record := &Subscription{
			OrgID:            orgID,
			StripeCustomerID: customerID,
			Status:           StatusIncomplete,
			SeatCount:        seats,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if sub != nil {
			record.CreatedAt = sub.CreatedAt
			record.StripeSubscriptionID = sub.StripeSubscriptionID
			record.Status = sub.Status
		}
		if err := s.store.Create(ctx, record); err != nil {
			return "", err
		}
	}

	url, err := s.client.CreateCheckoutSession(ctx, customerID, items, successURL, cancelURL)
	if err != nil {
		return "", err
	}
	metrics.CheckoutSessionsTotal.Inc()
	return url, nil
}

// ActivateSubscription records the Stripe subscription created by a
// completed checkout so later seat syncs know what to update.
func (s *Service) ActivateSubscription(ctx context.Context, orgID, stripeSubID string, seats int) (*Subscription, error) {
	sub, err := s.store.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	sub.StripeSubscriptionID = stripeSubID
	sub.Status = StatusActive
	sub.SeatCount = seats
	sub.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// SyncSeats reconciles the org's Stripe subscription items with the
// given seat count. Syncs for the same org are serialized; concurrent
// syncs for different orgs proceed independently. The engine runs
// before any Stripe call, so a pricing failure leaves the subscription
// untouched, and all item changes go out in a single update.
func (s *Service) SyncSeats(ctx context.Context, orgID string, seats int) error {
	ctx, span := traces.StartSpan(ctx, "billing.sync_seats",
		attribute.String("org.id", orgID),
		attribute.Int("seats", seats),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, orgID)
	if err != nil {
		return err
	}
	defer unlock()

	sub, err := s.store.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrSubNotFound) {
			// No subscription yet. Nothing to reconcile; checkout will
			// pick up the current count.
			metrics.SeatSyncsTotal.WithLabelValues("skipped").Inc()
			return nil
		}
		metrics.SeatSyncsTotal.WithLabelValues("error").Inc()
		return err
	}
	if sub.StripeSubscriptionID == "" {
		metrics.SeatSyncsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	if sub.SeatCount == seats {
		metrics.SeatSyncsTotal.WithLabelValues("noop").Inc()
		return nil
	}

	desired, err := pricing.BuildLineItems(s.cfg, s.prices, seats)
	if err != nil {
		metrics.SeatSyncsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("building line items for %d seats: %w", seats, err)
	}

	existing, err := s.client.SubscriptionItems(ctx, sub.StripeSubscriptionID)
	if err != nil {
		metrics.SeatSyncsTotal.WithLabelValues("error").Inc()
		return err
	}

	changes := pricing.Reconcile(desired, existing)
	if err := s.client.ApplyItemChanges(ctx, sub.StripeSubscriptionID, changes); err != nil {
		metrics.SeatSyncsTotal.WithLabelValues("error").Inc()
		return err
	}

	sub.SeatCount = seats
	sub.UpdatedAt = time.Now()
	if err := s.store.Update(ctx, sub); err != nil {
		// Stripe is updated but the record is stale; the next sync
		// re-reconciles from Stripe's actual items, so log and move on.
		logging.L(ctx).Warn("subscription record update failed after stripe sync",
			"org_id", orgID, "seats", seats, "error", err)
	}

	metrics.SeatSyncsTotal.WithLabelValues("synced").Inc()
	logging.L(ctx).Info("seat count synced", "org_id", orgID, "seats", seats, "changes", len(changes))
	return nil
}

// PortalURL creates a Stripe billing portal session for the org.
func (s *Service) PortalURL(ctx context.Context, orgID, returnURL string) (string, error) {
	sub, err := s.store.Get(ctx, orgID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	return s.client.CreatePortalSession(ctx, sub.StripeCustomerID, returnURL)
}
