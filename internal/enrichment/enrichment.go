// Package enrichment provides the HTTP client for the enrichment
// collaborator's status endpoint.
//
// The enrichment worker itself is an opaque asynchronous process; the only
// contract is GET {base}/status/{workID}, which must be idempotent and
// side-effect-free. This client implements poller.StatusChecker.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// DefaultRequestTimeout bounds a single status request.
const DefaultRequestTimeout = 5 * time.Second

// Opts holds configuration options for the enrichment client.
type Opts struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Option configures the enrichment client.
type Option func(*Opts)

// WithBaseURL sets the enrichment service base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// WithRequestTimeout bounds a single status request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Opts) { o.RequestTimeout = timeout }
}

// Client calls the enrichment status endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an enrichment status client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("enrichment base URL not set")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid enrichment base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	slog.Debug("Creating enrichment client", "baseURL", cfg.BaseURL)
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: httpClient}, nil
}

// CheckStatus issues one status request for the given unit of work. Transport
// errors, non-200 responses and malformed bodies surface as errors; the poller
// treats every one of them as a transient miss.
func (c *Client) CheckStatus(ctx context.Context, workID string) (*models.StatusResult, error) {
	if workID == "" {
		return nil, models.ErrEmptyWorkID
	}
	endpoint := fmt.Sprintf("%s/status/%s", c.baseURL, url.PathEscape(workID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var result models.StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed status response: %w", err)
	}
	switch result.Status {
	case models.WorkStatusPending, models.WorkStatusComplete:
	default:
		return nil, fmt.Errorf("unknown work status %q", result.Status)
	}
	slog.Debug("Enrichment CheckStatus", "workID", workID, "status", result.Status)
	return &result, nil
}
