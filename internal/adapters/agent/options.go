package agent

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds one extraction call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAPIKey sets the X-API-Key header value.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithBrowserProfile overrides the agent browser profile.
func WithBrowserProfile(profile string) Option {
	return func(c *Client) {
		if profile != "" {
			c.browserProfile = profile
		}
	}
}
