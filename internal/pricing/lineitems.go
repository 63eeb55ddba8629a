package pricing

import "fmt"

// PriceTable maps pricing components to Stripe price IDs. It is resolved
// from the environment at startup; Validate fails fast so a missing ID
// can never surface as a silently dropped charge mid-billing.
type PriceTable struct {
	// FlatFee is the price ID for the fixed monthly platform fee.
	FlatFee string
	// Tiers maps a tier label to the price ID billed per paid seat while
	// the organization sits in that tier. Zero-rate tiers need no entry.
	Tiers map[string]string
}

// Validate checks that the table carries an ID for the flat fee and for
// every tier of cfg with a non-zero per-seat rate.
func (p PriceTable) Validate(cfg Config) error {
	if p.FlatFee == "" {
		return fmt.Errorf("%w: flat fee", ErrPriceNotConfigured)
	}
	for _, t := range cfg.Tiers {
		if t.CentsPerSeat == 0 {
			continue
		}
		if p.Tiers[t.Label] == "" {
			return fmt.Errorf("%w: tier %q", ErrPriceNotConfigured, t.Label)
		}
	}
	return nil
}

// LineItem is one (price, quantity) pair handed to Stripe.
type LineItem struct {
	PriceID  string `json:"priceId"`
	Quantity int64  `json:"quantity"`
}

// ExistingItem is a subscription item as currently held by Stripe.
type ExistingItem struct {
	ItemID   string // Stripe subscription item ID ("si_...")
	PriceID  string
	Quantity int64
}

// ItemChange is one instruction in a subscription update: an in-place
// quantity update (ItemID set), an insertion (ItemID empty), or a
// deletion (Deleted set).
type ItemChange struct {
	ItemID   string
	PriceID  string
	Quantity int64
	Deleted  bool
}

// BuildLineItems produces the subscription items representing a seat
// count: always the flat-fee item, plus a single tier item carrying the
// entire paid-seat quantity when any seats are paid. No zero-quantity
// items are ever emitted — Stripe rejects them.
func BuildLineItems(cfg Config, prices PriceTable, totalSeats int) ([]LineItem, error) {
	if totalSeats < 0 {
		return nil, ErrNegativeSeats
	}
	if prices.FlatFee == "" {
		return nil, fmt.Errorf("%w: flat fee", ErrPriceNotConfigured)
	}

	items := []LineItem{{PriceID: prices.FlatFee, Quantity: 1}}

	paid := cfg.PaidSeats(totalSeats)
	if paid == 0 {
		return items, nil
	}

	tier, err := cfg.ResolveTier(totalSeats)
	if err != nil {
		return nil, err
	}
	priceID := prices.Tiers[tier.Label]
	if priceID == "" {
		return nil, fmt.Errorf("%w: tier %q", ErrPriceNotConfigured, tier.Label)
	}
	return append(items, LineItem{PriceID: priceID, Quantity: int64(paid)}), nil
}

// Reconcile diffs the desired line items against a subscription's current
// items and returns the complete instruction set for a single atomic
// update call: in-place updates for matching prices, insertions for new
// prices, and deletions for items no longer desired. Output order is
// deterministic — desired items first, then deletions in existing order.
func Reconcile(desired []LineItem, existing []ExistingItem) []ItemChange {
	byPrice := make(map[string]ExistingItem, len(existing))
	for _, e := range existing {
		byPrice[e.PriceID] = e
	}

	changes := make([]ItemChange, 0, len(desired)+len(existing))
	wanted := make(map[string]bool, len(desired))
	for _, d := range desired {
		wanted[d.PriceID] = true
		change := ItemChange{PriceID: d.PriceID, Quantity: d.Quantity}
		if e, ok := byPrice[d.PriceID]; ok {
			change.ItemID = e.ItemID
		}
		changes = append(changes, change)
	}
	for _, e := range existing {
		if !wanted[e.PriceID] {
			changes = append(changes, ItemChange{ItemID: e.ItemID, Deleted: true})
		}
	}
	return changes
}
