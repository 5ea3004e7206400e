package proofgate

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithAPIKey sets the API key attached to every request.
// If not set, requests run as the server's system actor (when the
// server allows unauthenticated calls).
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the per-call timeout applied when the caller's
// context has no earlier deadline. If not set, defaults to 5 minutes:
// a governed run includes real tool execution.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger for connection-level diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
