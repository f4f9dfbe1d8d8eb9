package backend

import (
	"errors"
	"fmt"
)

// ErrNoSession is wrapped by AuthError when no session token is available.
var ErrNoSession = errors.New("no session token")

// AuthError indicates that the session is missing, expired or rejected.
// It is returned for HTTP 401/403 and, without any network call, when the
// client has no token at all.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("auth error: %s", e.Message)
	}
	return fmt.Sprintf("auth error (%d): %s", e.StatusCode, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is a non-2xx response from the gateway other than an auth failure.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway API error (%d) on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Message)
}

// StatusCode extracts the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.StatusCode != 0 {
		return authErr.StatusCode, true
	}
	return 0, false
}

// Describe turns err into a short message suitable for an error banner.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return "Session expired or missing. Run 'paydash login' to sign in again."
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Gateway returned HTTP %d", apiErr.StatusCode)
	}

	return fmt.Sprintf("Could not reach the gateway: %v", err)
}
