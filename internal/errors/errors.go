package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors of the client core. The typed errors below match them with errors.Is.
var (
	// Transport errors
	ErrNetwork            = errors.New("network error")
	ErrRateLimited        = errors.New("rate limited, try again shortly")
	ErrRefreshRateLimited = errors.New("refresh rate-limited, try again shortly")

	// Authentication errors
	ErrAuth           = errors.New("authentication failed, log in again")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrSessionExpired = errors.New("session expired")
	ErrCorruptSession = errors.New("corrupt session data")

	// Response errors
	ErrHTTP       = errors.New("http error")
	ErrValidation = errors.New("validation error")
)

// NetworkError means no response was received from the backend.
type NetworkError struct {
	BaseURL string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("unable to reach the server at %s: %v", e.BaseURL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// RateLimitError is a 429 that survived its single retry, or a 429 from the refresh endpoint.
type RateLimitError struct {
	RetryAfter time.Duration
	Refresh    bool
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Refresh {
		return ErrRefreshRateLimited.Error()
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", ErrRateLimited.Error(), e.Message)
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited || (e.Refresh && target == ErrRefreshRateLimited)
}

// AuthError is terminal: the session has been cleared and the user must sign in again.
type AuthError struct {
	Reason error
	Err    error
}

func NewAuthError(reason, cause error) *AuthError {
	return &AuthError{Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason.Error()
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func (e *AuthError) Is(target error) bool { return target == ErrAuth }

// HTTPError is any other non-2xx response, passed through for the caller to display.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, msg)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return true
	case ErrValidation:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0 when it has none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return http.StatusTooManyRequests
	}
	return 0
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
