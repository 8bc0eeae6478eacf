package apiclient

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy retries a 429 and nothing else. Connection failures surface immediately as
// network errors; the retry budget (RetryMax) limits it to a single retry.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// backoff waits for the server's Retry-After when it sent one, else the configured default.
func (c *Client) backoff(_, _ time.Duration, _ int, resp *http.Response) time.Duration {
	if resp != nil {
		if d, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			return d
		}
	}
	return c.rateLimitBackoff
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
