package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all Koinonia support
// tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("koinonia", "1.0.0")
	client := NewKoinoniaClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetPricingTiers, h.HandleGetPricingTiers)
	s.AddTool(ToolGetBillingBreakdown, h.HandleGetBillingBreakdown)
	s.AddTool(ToolPreviewSeatChange, h.HandlePreviewSeatChange)
	s.AddTool(ToolGetOrganization, h.HandleGetOrganization)

	return s
}
