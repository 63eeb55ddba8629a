package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the Koinonia platform.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
	APIKey string // Support API key
}

// KoinoniaClient is a pure HTTP client for the Koinonia platform API.
type KoinoniaClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewKoinoniaClient creates a new client for the Koinonia platform.
func NewKoinoniaClient(cfg Config) *KoinoniaClient {
	return &KoinoniaClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *KoinoniaClient) doRequest(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetTiers returns the pricing tier table.
func (c *KoinoniaClient) GetTiers(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/pricing/tiers", nil)
}

// GetBreakdown returns the cost breakdown for a seat count.
func (c *KoinoniaClient) GetBreakdown(ctx context.Context, seats int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("seats", strconv.Itoa(seats))
	return c.doRequest(ctx, http.MethodGet, "/v1/pricing/breakdown", q)
}

// GetOrganization returns an organization by ID or slug, with its live
// seat count.
func (c *KoinoniaClient) GetOrganization(ctx context.Context, idOrSlug string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(idOrSlug), nil)
}

// GetSubscription returns the billing record for an organization.
func (c *KoinoniaClient) GetSubscription(ctx context.Context, orgID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/billing/subscription", nil)
}
