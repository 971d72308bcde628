package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the API base URL (default: https://opensky-network.org/api)
	BaseURL string

	// Timeout bounds each HTTP request (default: 15 seconds)
	Timeout time.Duration

	// RequestInterval is the minimum spacing between requests.
	// Zero disables client-side throttling.
	RequestInterval time.Duration

	// TokenSource authenticates requests with OAuth2 bearer tokens.
	// nil means anonymous access.
	TokenSource oauth2.TokenSource

	// Limits receives quota information from every response.
	// A private tracker is created when nil.
	Limits *RateLimitTracker
}

// Client fetches state vectors from the OpenSky REST API.
type Client struct {
	// baseURL is the API base URL without trailing slash
	baseURL string

	// httpClient carries the OAuth2 transport when authenticated
	httpClient *http.Client

	// limiter spaces out requests from this process
	limiter *rate.Limiter

	// limits is shared with whoever reports quota status
	limits *RateLimitTracker

	authenticated bool
}

// NewClient creates a new OpenSky client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.TokenSource != nil {
		httpClient.Transport = &oauth2.Transport{
			Source: cfg.TokenSource,
			Base:   http.DefaultTransport,
		}
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	limits := cfg.Limits
	if limits == nil {
		limits = NewRateLimitTracker()
	}
	authenticated := cfg.TokenSource != nil
	limits.SetAuthenticated(authenticated)

	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		limiter:       rate.NewLimiter(limit, 1),
		limits:        limits,
		authenticated: authenticated,
	}
}

// Authenticated reports whether requests carry OAuth2 credentials.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// Limits returns the tracker updated by this client.
func (c *Client) Limits() *RateLimitTracker {
	return c.limits
}

// GetStates returns all state vectors inside the bounding box.
// A nil box queries the whole world.
//
// Rows that fail to decode are dropped; the rest of the response is kept.
func (c *Client) GetStates(ctx context.Context, box *BoundingBox) ([]StateVector, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request slot: %w", err)
	}

	endpoint := c.baseURL + "/states/all"
	if box != nil {
		q := url.Values{}
		q.Set("lamin", formatCoord(box.LatMin))
		q.Set("lamax", formatCoord(box.LatMax))
		q.Set("lomin", formatCoord(box.LonMin))
		q.Set("lomax", formatCoord(box.LonMax))
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch states: %w", err)
	}
	defer resp.Body.Close()

	headers := extractRateLimitHeaders(resp.Header)

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header)
		c.limits.Observe(headers, retryAfter)
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
			Message:    "Rate limit exceeded",
			Headers:    headers,
		}
	}
	c.limits.Observe(headers, 0)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var apiResp statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	states := make([]StateVector, 0, len(apiResp.States))
	for _, raw := range apiResp.States {
		var sv StateVector
		if err := json.Unmarshal(raw, &sv); err != nil {
			continue
		}
		states = append(states, sv)
	}
	return states, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
