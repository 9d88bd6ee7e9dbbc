// Package fetcher performs rate-limited page fetches against the storefront.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/soldby/internal/httpclient"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
)

const (
	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 2

	// MaxBodySize caps how much of a page is read.
	MaxBodySize = 8 * 1024 * 1024
)

// ErrNetwork marks a fetch that never produced an HTTP response
var ErrNetwork = errors.New("network failure")

// Client fetches pages. It never retries: a failed fetch is reported once.
type Client struct {
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
	userAgent      string
	acceptLanguage string
}

var _ interfaces.Fetcher = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit. Zero disables limiting.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, burst)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithHeaders sets the User-Agent and Accept-Language sent with every request.
func WithHeaders(userAgent, acceptLanguage string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
		c.acceptLanguage = acceptLanguage
	}
}

// NewClient creates a new page fetcher.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: httpclient.NewDefaultHTTPClient(0),
		logger:     arbor.NewLogger(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch performs a GET. Any completed round-trip returns a response whatever
// its status; connectivity failures return an error wrapping ErrNetwork.
func (c *Client) Fetch(ctx context.Context, url string) (*models.FetchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.acceptLanguage != "" {
		req.Header.Set("Accept-Language", c.acceptLanguage)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("Fetch failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetwork, url, err)
	}

	result := &models.FetchResponse{
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}

	c.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("latency", result.Latency).
		Msg("Fetched page")

	return result, nil
}
