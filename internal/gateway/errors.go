package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means the session is missing, expired or refused by the backend.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTransitionRejected means the backend refused a status change.
	ErrTransitionRejected = errors.New("transition rejected by backend")
	// ErrNetworkFailure means the request could not complete.
	ErrNetworkFailure = errors.New("network failure")
	// ErrFetchFailure means a read request returned an unusable response.
	ErrFetchFailure = errors.New("fetch failure")
)

// StatusError carries the HTTP status of a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// classify maps a non-2xx response to an error kind. write is true for requests that change
// state on the backend.
func classify(code int, body string, write bool) error {
	se := &StatusError{Code: code, Body: body}
	switch {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthenticated, se)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrNetworkFailure, se)
	case write:
		return fmt.Errorf("%w: %w", ErrTransitionRejected, se)
	default:
		return fmt.Errorf("%w: %w", ErrFetchFailure, se)
	}
}
