// Package pricing implements the graduated per-seat pricing engine for
// Koinonia subscriptions.
//
// An organization pays a flat monthly fee plus a per-seat rate for every
// seat above the free threshold. The rate is determined by the tier the
// organization's *total* seat count falls into, and applies to all paid
// seats at once — crossing into a cheaper tier re-rates every paid seat,
// so total cost can drop when seats grow past a boundary. That is the
// business rule, not a rounding artifact.
package pricing

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeSeats      = errors.New("pricing: seat count cannot be negative")
	ErrNoMatchingTier     = errors.New("pricing: no tier matches seat count")
	ErrPriceNotConfigured = errors.New("pricing: missing Stripe price ID")
	ErrInvalidTierTable   = errors.New("pricing: invalid tier table")
)

// Unbounded marks the open-ended upper bound of the last tier.
const Unbounded = 0

// Tier is one contiguous range of total-seat counts sharing a per-seat rate.
type Tier struct {
	MinSeats     int    `json:"minSeats"`
	MaxSeats     int    `json:"maxSeats"` // Unbounded for the last tier
	CentsPerSeat int64  `json:"centsPerSeat"`
	Label        string `json:"label"`
}

// Contains reports whether the tier's range includes the given seat count.
func (t Tier) Contains(seats int) bool {
	if seats < t.MinSeats {
		return false
	}
	return t.MaxSeats == Unbounded || seats <= t.MaxSeats
}

// Config is the process-wide pricing table. It is built once at startup
// and never mutated, so it is safe to share across goroutines.
type Config struct {
	FlatFeeCents int64  `json:"flatFeeCents"`
	FreeSeats    int    `json:"freeSeats"`
	Tiers        []Tier `json:"tiers"`
}

// Default returns the production pricing table: $19.99 flat fee, the
// first 50 seats free, then $9.99/$7.99/$5.99 per paid seat as the
// congregation grows.
func Default() Config {
	return Config{
		FlatFeeCents: 1999,
		FreeSeats:    50,
		Tiers: []Tier{
			{MinSeats: 1, MaxSeats: 50, CentsPerSeat: 0, Label: "free"},
			{MinSeats: 51, MaxSeats: 75, CentsPerSeat: 999, Label: "growth"},
			{MinSeats: 76, MaxSeats: 200, CentsPerSeat: 799, Label: "thrive"},
			{MinSeats: 201, MaxSeats: Unbounded, CentsPerSeat: 599, Label: "enterprise"},
		},
	}
}

// Validate checks the structural invariants of the tier table: the first
// tier starts at seat 1, ranges are contiguous and non-overlapping, only
// the last tier is unbounded, rates are non-negative, labels are unique.
func (c Config) Validate() error {
	if c.FlatFeeCents < 0 {
		return fmt.Errorf("%w: negative flat fee", ErrInvalidTierTable)
	}
	if c.FreeSeats < 0 {
		return fmt.Errorf("%w: negative free-seat threshold", ErrInvalidTierTable)
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTierTable)
	}
	if c.Tiers[0].MinSeats != 1 {
		return fmt.Errorf("%w: first tier must start at 1 seat, got %d", ErrInvalidTierTable, c.Tiers[0].MinSeats)
	}

	labels := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.CentsPerSeat < 0 {
			return fmt.Errorf("%w: tier %q has negative rate", ErrInvalidTierTable, t.Label)
		}
		if t.Label == "" {
			return fmt.Errorf("%w: tier %d has no label", ErrInvalidTierTable, i)
		}
		if labels[t.Label] {
			return fmt.Errorf("%w: duplicate label %q", ErrInvalidTierTable, t.Label)
		}
		labels[t.Label] = true

		last := i == len(c.Tiers)-1
		if last {
			if t.MaxSeats != Unbounded {
				return fmt.Errorf("%w: last tier %q must be unbounded", ErrInvalidTierTable, t.Label)
			}
			continue
		}
		if t.MaxSeats == Unbounded {
			return fmt.Errorf("%w: tier %q is unbounded but not last", ErrInvalidTierTable, t.Label)
		}
		if t.MaxSeats < t.MinSeats {
			return fmt.Errorf("%w: tier %q has max < min", ErrInvalidTierTable, t.Label)
		}
		if c.Tiers[i+1].MinSeats != t.MaxSeats+1 {
			return fmt.Errorf("%w: gap between tiers %q and %q", ErrInvalidTierTable, t.Label, c.Tiers[i+1].Label)
		}
	}
	return nil
}

// ResolveTier returns the tier for an organization's total seat count.
//
// Zero seats resolve to the first tier: an organization with no billable
// seats must never be priced at the top rate, so there is no fallback to
// the last tier on a miss. With a valid table a miss is impossible for
// seats >= 1; ErrNoMatchingTier therefore indicates a corrupted table.
func (c Config) ResolveTier(totalSeats int) (Tier, error) {
	if totalSeats < 0 {
		return Tier{}, ErrNegativeSeats
	}
	if len(c.Tiers) == 0 {
		return Tier{}, fmt.Errorf("%w: empty tier table", ErrNoMatchingTier)
	}
	if totalSeats < c.Tiers[0].MinSeats {
		return c.Tiers[0], nil
	}
	for _, t := range c.Tiers {
		if t.Contains(totalSeats) {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %d seats", ErrNoMatchingTier, totalSeats)
}

// PaidSeats returns the number of seats billed at the per-seat rate.
func (c Config) PaidSeats(totalSeats int) int {
	paid := totalSeats - c.FreeSeats
	if paid < 0 {
		return 0
	}
	return paid
}

// TotalCost returns the monthly charge in cents for the given seat count:
// flat fee plus paid seats times the resolved tier's rate.
func (c Config) TotalCost(totalSeats int) (int64, error) {
	variable, err := c.VariableCost(totalSeats)
	if err != nil {
		return 0, err
	}
	return c.FlatFeeCents + variable, nil
}

// VariableCost returns the per-seat portion of the monthly charge in
// cents. It equals TotalCost(seats) - FlatFeeCents for every input.
func (c Config) VariableCost(totalSeats int) (int64, error) {
	if totalSeats < 0 {
		return 0, ErrNegativeSeats
	}
	tier, err := c.ResolveTier(totalSeats)
	if err != nil {
		return 0, err
	}
	return int64(c.PaidSeats(totalSeats)) * tier.CentsPerSeat, nil
}

// Breakdown is the human-facing decomposition of a monthly charge.
type Breakdown struct {
	TotalSeats    int    `json:"totalSeats"`
	FreeSeats     int    `json:"freeSeats"`
	PaidSeats     int    `json:"paidSeats"`
	TierLabel     string `json:"tier"`
	CentsPerSeat  int64  `json:"centsPerSeat"`
	FlatFeeCents  int64  `json:"flatFeeCents"`
	VariableCents int64  `json:"variableCents"`
	TotalCents    int64  `json:"totalCents"`
}

// Breakdown computes the cost components for the given seat count.
func (c Config) Breakdown(totalSeats int) (Breakdown, error) {
	if totalSeats < 0 {
		return Breakdown{}, ErrNegativeSeats
	}
	tier, err := c.ResolveTier(totalSeats)
	if err != nil {
		return Breakdown{}, err
	}
	paid := c.PaidSeats(totalSeats)
	variable := int64(paid) * tier.CentsPerSeat
	return Breakdown{
		TotalSeats:    totalSeats,
		FreeSeats:     c.FreeSeats,
		PaidSeats:     paid,
		TierLabel:     tier.Label,
		CentsPerSeat:  tier.CentsPerSeat,
		FlatFeeCents:  c.FlatFeeCents,
		VariableCents: variable,
		TotalCents:    c.FlatFeeCents + variable,
	}, nil
}

// FormatCents renders a cent amount as a dollar string, e.g. 1999 -> "$19.99".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
