package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-labs/koinonia/internal/pricing"
)

// --- Test helpers ---

// fakePlatform serves canned Koinonia API responses.
func fakePlatform() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/pricing/tiers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"flatFeeCents": 1999,
			"freeSeats": 50,
			"tiers": [
				{"minSeats": 1, "maxSeats": 50, "centsPerSeat": 0, "label": "free"},
				{"minSeats": 51, "maxSeats": 75, "centsPerSeat": 999, "label": "growth"},
				{"minSeats": 76, "maxSeats": 200, "centsPerSeat": 799, "label": "thrive"},
				{"minSeats": 201, "maxSeats": 0, "centsPerSeat": 599, "label": "enterprise"}
			]
		}`))
	})

	mux.HandleFunc("/v1/pricing/breakdown", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("seats") {
		case "75":
			w.Write([]byte(`{"breakdown":{"totalSeats":75,"freeSeats":50,"paidSeats":25,"tier":"growth","centsPerSeat":999,"flatFeeCents":1999,"totalCents":26974},"totalFormatted":"$269.74"}`))
		case "76":
			w.Write([]byte(`{"breakdown":{"totalSeats":76,"freeSeats":50,"paidSeats":26,"tier":"thrive","centsPerSeat":799,"flatFeeCents":1999,"totalCents":22773},"totalFormatted":"$227.73"}`))
		default:
			w.Write([]byte(`{"breakdown":{"totalSeats":25,"freeSeats":25,"paidSeats":0,"tier":"free","centsPerSeat":0,"flatFeeCents":1999,"totalCents":1999},"totalFormatted":"$19.99"}`))
		}
	})

	mux.HandleFunc("/v1/orgs/grace", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organization":{"id":"org_1","name":"Grace Fellowship","slug":"grace","status":"active"},"seatCount":75}`))
	})

	mux.HandleFunc("/v1/orgs/org_1/billing/subscription", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orgId":"org_1","status":"active","seatCount":75}`))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not_found","message":"organization not found"}`))
	})

	return mux
}

func newTestSetup(t *testing.T) (*Handlers, func()) {
	t.Helper()
	ts := httptest.NewServer(fakePlatform())
	client := NewKoinoniaClient(Config{APIURL: ts.URL, APIKey: "sk_support"})
	return NewHandlers(client), ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// --- Tests ---

func TestHandleGetPricingTiers(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandleGetPricingTiers(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "$19.99/month")
	assert.Contains(t, text, "first 50")
	assert.Contains(t, text, "growth")
	assert.Contains(t, text, "201+")
}

func TestHandleGetBillingBreakdown(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandleGetBillingBreakdown(context.Background(), makeRequest(map[string]any{"seats": 75}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "75 (50 free, 25 paid)")
	assert.Contains(t, text, "growth")
	assert.Contains(t, text, "$269.74/month")
}

func TestHandleGetBillingBreakdown_MissingSeats(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandleGetBillingBreakdown(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// The platform marshals pricing.Breakdown directly, so the tool must
// parse that exact shape rather than a hand-written fixture.
func TestHandleGetBillingBreakdown_RealPayloadShape(t *testing.T) {
	b, err := pricing.Default().Breakdown(120)
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(map[string]any{
			"breakdown":      b,
			"totalFormatted": pricing.FormatCents(b.TotalCents),
		})
		w.Write(payload)
	}))
	defer ts.Close()

	h := NewHandlers(NewKoinoniaClient(Config{APIURL: ts.URL}))
	result, err := h.HandleGetBillingBreakdown(context.Background(), makeRequest(map[string]any{"seats": 120}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "thrive", "tier name must survive the round trip")
	assert.Contains(t, text, "120 (50 free, 70 paid)")
}

func TestHandlePreviewSeatChange_CheaperTier(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandlePreviewSeatChange(context.Background(), makeRequest(map[string]any{
		"org":       "grace",
		"new_seats": 76,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Grace Fellowship")
	assert.Contains(t, text, "75 seats on growth = $269.74/month")
	assert.Contains(t, text, "76 seats on thrive = $227.73/month")
	// One more seat, lower bill.
	assert.Contains(t, text, "-$42.01/month")
	assert.Contains(t, text, "cheaper tier rate")
}

func TestHandlePreviewSeatChange_UnknownOrg(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandlePreviewSeatChange(context.Background(), makeRequest(map[string]any{
		"org":       "nope",
		"new_seats": 10,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "organization not found")
}

func TestHandleGetOrganization(t *testing.T) {
	h, done := newTestSetup(t)
	defer done()

	result, err := h.HandleGetOrganization(context.Background(), makeRequest(map[string]any{"org": "grace"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Grace Fellowship")
	assert.Contains(t, text, "Status: active")
	assert.Contains(t, text, "Seats: 75")
	assert.Contains(t, text, "Subscription: active")
}

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewKoinoniaClient(Config{APIURL: ts.URL, APIKey: "sk_support"})
	_, err := client.GetTiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_support", gotAuth)
}
