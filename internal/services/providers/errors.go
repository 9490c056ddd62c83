package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ResponseError indicates the provider answered but the payload could not be
// used: wrong line count, unparseable numbering, or empty content.
type ResponseError struct {
	Provider string
	Reason   string
	Snippet  string
}

func (e *ResponseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s: bad response: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s: bad response: %s (payload snippet: %s)", e.Provider, e.Reason, e.Snippet)
}

// RateLimitError indicates HTTP 429. RetryAfter is zero when the server sent
// no usable Retry-After header.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// StatusError carries any other non-success HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether an adapter error is worth retrying: bad response
// payloads, rate limits, server-side failures, and transport timeouts. A
// malformed or miscounted reply is a per-request fluke, so the same batch may
// well parse on the next attempt. Context cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var response *ResponseError
	if errors.As(err, &response) {
		return true
	}

	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode == http.StatusRequestTimeout ||
			status.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	return false
}

// RetryAfterHint extracts the server-requested delay from a rate limit error.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) && rateLimit.RetryAfter > 0 {
		return rateLimit.RetryAfter, true
	}
	return 0, false
}

func statusToError(provider string, statusCode int, body string, retryAfterHeader string) error {
	if statusCode == http.StatusTooManyRequests {
		retryAfter, _ := parseRetryAfter(retryAfterHeader)
		return &RateLimitError{Provider: provider, RetryAfter: retryAfter}
	}
	return &StatusError{Provider: provider, StatusCode: statusCode, Body: body}
}

func parseRetryAfter(value string) (time.Duration, bool) {
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
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
