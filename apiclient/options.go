package apiclient

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-finadmin-client/internal/obs"
	"github.com/jrsteele09/go-finadmin-client/token/refresh"
	"golang.org/x/time/rate"
)

// Option customizes the client.
type Option func(c *Client)

// WithCoordinator makes the client share an existing refresh coordinator (and therefore
// its single in-flight exchange) instead of building its own.
func WithCoordinator(coordinator *refresh.Coordinator) Option {
	return func(c *Client) {
		c.coordinator = coordinator
	}
}

// WithHTTPTransport sets the transport used for every request, including refresh exchanges.
func WithHTTPTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimitBackoff sets the wait before retrying a 429 that carried no Retry-After.
func WithRateLimitBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.rateLimitBackoff = d
	}
}

// WithLimiter throttles outbound requests client side.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxAges sets the lifetimes written to the token store on sign-in and refresh.
func WithMaxAges(access, refresh time.Duration) Option {
	return func(c *Client) {
		c.accessMaxAge = access
		c.refreshMaxAge = refresh
	}
}

// WithServiceIdentity sets the service headers. token is only sent to appOrigin; an
// empty appOrigin sends it everywhere.
func WithServiceIdentity(name, token, appOrigin string) Option {
	return func(c *Client) {
		c.serviceName = name
		c.serviceToken = token
		c.appOrigin = appOrigin
	}
}
