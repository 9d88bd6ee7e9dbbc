package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// NewDefaultHTTPClient creates a simple HTTP client. A zero timeout leaves
// requests bounded only by their context.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewSessionHTTPClient creates an HTTP client with a cookie jar so session
// cookies handed out by the storefront are replayed on later page fetches
func NewSessionHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := NewDefaultHTTPClient(timeout)
	client.Jar = jar
	return client, nil
}
