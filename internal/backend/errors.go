package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a non-2xx response from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server-supplied message, empty if none was sent.
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.StatusCode == http.StatusUnauthorized || be.StatusCode == http.StatusForbidden
	}
	return false
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.StatusCode == http.StatusConflict
	}
	return false
}

// IsClientError reports whether err is a 4xx response.
func IsClientError(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.StatusCode >= 400 && be.StatusCode < 500
	}
	return false
}
