// Package transport provides the HTTP client used to retrieve remote JSON
// documents. It maps network failures and non-2xx answers onto the typed
// errors of pkg/errors.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/agentstation/procreport/pkg/constants"
	"github.com/agentstation/procreport/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client provides HTTP client functionality for document retrieval.
type Client struct {
	http      *http.Client
	userAgent string
	maxBytes  int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBytes caps the accepted response body size.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// New creates a new transport client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		userAgent: "procreport",
		maxBytes:  constants.MaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// Get performs a GET request and returns the response body. Connection
// failures and timeouts yield *errors.TransportError, non-2xx statuses
// *errors.APIError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewTransportError(url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(url, err)
	}
	return readBody(resp, url, c.maxBytes)
}
