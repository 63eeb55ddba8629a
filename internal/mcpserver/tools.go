package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Koinonia support MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetPricingTiers = mcp.NewTool("get_pricing_tiers",
	mcp.WithDescription(
		"Get the Koinonia pricing tier table: the flat platform fee, the free seat "+
			"allowance, and the per-seat rate for each tier. "+
			"Use this to explain how an organization's bill is structured."),
)

var ToolGetBillingBreakdown = mcp.NewTool("get_billing_breakdown",
	mcp.WithDescription(
		"Compute the monthly cost for a given number of seats. "+
			"Returns which tier applies, how many seats are free versus paid, and the total. "+
			"Note that all paid seats bill at the resolved tier's rate, so crossing into "+
			"a cheaper tier can lower the total."),
	mcp.WithNumber("seats",
		mcp.Required(),
		mcp.Description("Total seat count to price (members in the organization)")),
)

var ToolPreviewSeatChange = mcp.NewTool("preview_seat_change",
	mcp.WithDescription(
		"Preview how an organization's monthly cost would change at a new seat count. "+
			"Compares the current bill against the proposed one and reports the delta. "+
			"Useful before a church adds or removes a batch of members."),
	mcp.WithString("org",
		mcp.Required(),
		mcp.Description("Organization ID or slug")),
	mcp.WithNumber("new_seats",
		mcp.Required(),
		mcp.Description("Proposed total seat count")),
)

var ToolGetOrganization = mcp.NewTool("get_organization",
	mcp.WithDescription(
		"Look up a Koinonia organization by ID or slug. "+
			"Returns its status, live seat count, and subscription state when one exists."),
	mcp.WithString("org",
		mcp.Required(),
		mcp.Description("Organization ID or slug")),
)
