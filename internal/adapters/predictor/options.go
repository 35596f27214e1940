package predictor

import (
	"time"

	"github.com/okian/sentiment/pkg/logger"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultMaxConnections = 50
	maxErrorBody          = 512
)

// Option configures a Client.
type Option func(*Client)

// WithConnectTimeout bounds TCP connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithRequestTimeout bounds a whole call, response body included.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithMaxConnections bounds the connection pool to the predictor host.
func WithMaxConnections(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConnections = n
		}
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
