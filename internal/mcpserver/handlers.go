package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/koinonia-labs/koinonia/internal/pricing"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *KoinoniaClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *KoinoniaClient) *Handlers {
	return &Handlers{client: client}
}

// tierInfo mirrors the /v1/pricing/tiers response.
type tierInfo struct {
	FlatFeeCents int64 `json:"flatFeeCents"`
	FreeSeats    int   `json:"freeSeats"`
	Tiers        []struct {
		MinSeats     int    `json:"minSeats"`
		MaxSeats     int    `json:"maxSeats"`
		CentsPerSeat int64  `json:"centsPerSeat"`
		Label        string `json:"label"`
	} `json:"tiers"`
}

// breakdownInfo mirrors the /v1/pricing/breakdown response.
type breakdownInfo struct {
	Breakdown struct {
		TotalSeats   int    `json:"totalSeats"`
		FreeSeats    int    `json:"freeSeats"`
		PaidSeats    int    `json:"paidSeats"`
		TierLabel    string `json:"tier"`
		CentsPerSeat int64  `json:"centsPerSeat"`
		FlatFeeCents int64  `json:"flatFeeCents"`
		TotalCents   int64  `json:"totalCents"`
	} `json:"breakdown"`
	TotalFormatted string `json:"totalFormatted"`
}

// orgInfo mirrors the /v1/orgs/:id response.
type orgInfo struct {
	Organization struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Slug   string `json:"slug"`
		Status string `json:"status"`
	} `json:"organization"`
	SeatCount int `json:"seatCount"`
}

// HandleGetPricingTiers returns the tier table.
func (h *Handlers) HandleGetPricingTiers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetTiers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch pricing tiers: %v", err)), nil
	}

	var info tierInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse tiers: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Koinonia pricing\n")
	fmt.Fprintf(&sb, "Flat platform fee: %s/month\n", pricing.FormatCents(info.FlatFeeCents))
	fmt.Fprintf(&sb, "Free seats: first %d\n\n", info.FreeSeats)
	for _, t := range info.Tiers {
		rangeStr := fmt.Sprintf("%d+", t.MinSeats)
		if t.MaxSeats != 0 {
			rangeStr = fmt.Sprintf("%d-%d", t.MinSeats, t.MaxSeats)
		}
		if t.CentsPerSeat == 0 {
			fmt.Fprintf(&sb, "  %-12s %8s seats: included\n", t.Label, rangeStr)
		} else {
			fmt.Fprintf(&sb, "  %-12s %8s seats: %s per paid seat\n", t.Label, rangeStr, pricing.FormatCents(t.CentsPerSeat))
		}
	}
	sb.WriteString("\nAll paid seats bill at the tier the total seat count lands in.")

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetBillingBreakdown prices a seat count.
func (h *Handlers) HandleGetBillingBreakdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seats := req.GetInt("seats", -1)
	if seats < 0 {
		return mcp.NewToolResultError("seats is required and must not be negative"), nil
	}

	raw, err := h.client.GetBreakdown(ctx, seats)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch breakdown: %v", err)), nil
	}

	var info breakdownInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse breakdown: %v", err)), nil
	}

	return mcp.NewToolResultText(formatBreakdown(info)), nil
}

func formatBreakdown(info breakdownInfo) string {
	b := info.Breakdown
	var sb strings.Builder
	fmt.Fprintf(&sb, "Seats: %d (%d free, %d paid)\n", b.TotalSeats, b.FreeSeats, b.PaidSeats)
	fmt.Fprintf(&sb, "Tier: %s", b.TierLabel)
	if b.CentsPerSeat > 0 {
		fmt.Fprintf(&sb, " (%s per paid seat)", pricing.FormatCents(b.CentsPerSeat))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Flat fee: %s\n", pricing.FormatCents(b.FlatFeeCents))
	fmt.Fprintf(&sb, "Total: %s/month", info.TotalFormatted)
	return sb.String()
}

// HandlePreviewSeatChange compares the current bill against a proposed
// seat count.
func (h *Handlers) HandlePreviewSeatChange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgRef := req.GetString("org", "")
	if orgRef == "" {
		return mcp.NewToolResultError("org is required"), nil
	}
	newSeats := req.GetInt("new_seats", -1)
	if newSeats < 0 {
		return mcp.NewToolResultError("new_seats is required and must not be negative"), nil
	}

	rawOrg, err := h.client.GetOrganization(ctx, orgRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch organization: %v", err)), nil
	}
	var o orgInfo
	if err := json.Unmarshal(rawOrg, &o); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse organization: %v", err)), nil
	}

	current, err := h.fetchBreakdown(ctx, o.SeatCount)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	proposed, err := h.fetchBreakdown(ctx, newSeats)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	delta := proposed.Breakdown.TotalCents - current.Breakdown.TotalCents

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n\n", o.Organization.Name, o.Organization.Slug)
	fmt.Fprintf(&sb, "Current: %d seats on %s = %s/month\n",
		current.Breakdown.TotalSeats, current.Breakdown.TierLabel, current.TotalFormatted)
	fmt.Fprintf(&sb, "Proposed: %d seats on %s = %s/month\n",
		proposed.Breakdown.TotalSeats, proposed.Breakdown.TierLabel, proposed.TotalFormatted)

	switch {
	case delta > 0:
		fmt.Fprintf(&sb, "\nChange: +%s/month", pricing.FormatCents(delta))
	case delta < 0:
		fmt.Fprintf(&sb, "\nChange: -%s/month", pricing.FormatCents(-delta))
		if proposed.Breakdown.TotalSeats > current.Breakdown.TotalSeats {
			sb.WriteString(" (more seats, cheaper tier rate applies to all paid seats)")
		}
	default:
		sb.WriteString("\nChange: none")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (h *Handlers) fetchBreakdown(ctx context.Context, seats int) (breakdownInfo, error) {
	raw, err := h.client.GetBreakdown(ctx, seats)
	if err != nil {
		return breakdownInfo{}, fmt.Errorf("failed to fetch breakdown for %d seats: %v", seats, err)
	}
	var info breakdownInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return breakdownInfo{}, fmt.Errorf("failed to parse breakdown: %v", err)
	}
	return info, nil
}

// HandleGetOrganization looks up an organization and its billing state.
func (h *Handlers) HandleGetOrganization(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orgRef := req.GetString("org", "")
	if orgRef == "" {
		return mcp.NewToolResultError("org is required"), nil
	}

	raw, err := h.client.GetOrganization(ctx, orgRef)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch organization: %v", err)), nil
	}
	var o orgInfo
	if err := json.Unmarshal(raw, &o); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse organization: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", o.Organization.Name)
	fmt.Fprintf(&sb, "  ID: %s\n", o.Organization.ID)
	fmt.Fprintf(&sb, "  Slug: %s\n", o.Organization.Slug)
	fmt.Fprintf(&sb, "  Status: %s\n", o.Organization.Status)
	fmt.Fprintf(&sb, "  Seats: %d\n", o.SeatCount)

	// Subscription is optional; an org without one is still valid.
	if rawSub, err := h.client.GetSubscription(ctx, o.Organization.ID); err == nil {
		var sub struct {
			Status    string `json:"status"`
			SeatCount int    `json:"seatCount"`
		}
		if json.Unmarshal(rawSub, &sub) == nil {
			fmt.Fprintf(&sb, "  Subscription: %s, last billed for %d seats\n", sub.Status, sub.SeatCount)
			if sub.SeatCount != o.SeatCount {
				fmt.Fprintf(&sb, "  Note: billed seats differ from live seats; a sync is pending or failed\n")
			}
		}
	} else {
		sb.WriteString("  Subscription: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
