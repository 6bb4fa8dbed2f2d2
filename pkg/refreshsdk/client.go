package refreshsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to a token refresh service. It holds no tokens itself; use
// NewSession for a token pair that renews itself.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// RefreshBuffer is how long before access token expiry a Session
	// refreshes. Defaults to 30s.
	RefreshBuffer time.Duration
}

// NewClient returns a client for the refresh service at baseURL with a 10s
// request timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		RefreshBuffer: 30 * time.Second,
	}
}
