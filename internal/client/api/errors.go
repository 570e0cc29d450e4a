package api

import (
	"errors"
	"fmt"
)

// Error taxonomy of the remote store. Every error returned by Client wraps
// exactly one of these, so callers branch with errors.Is.
var (
	// ErrStoreUnavailable: transport failure, timeout, 5xx or an undecodable response
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPermissionDenied: the backend rejected the identity (401/403)
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidationFailed: the backend rejected the request body (400)
	ErrValidationFailed = errors.New("validation failed")
	// ErrEntryNotFound: comment creation under an entry that does not exist
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNotFound: any other 404
	ErrNotFound = errors.New("not found")
	// ErrConflict: the resource already exists (username taken)
	ErrConflict = errors.New("conflict")
	// ErrUnexpectedStatus: a status code outside the mapping above
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// StatusError is a non-2xx answer of the backend
type StatusError struct {
	kind       error
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (%d)", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%v (%d): %s", e.kind, e.StatusCode, e.Message)
}

// Unwrap returns the taxonomy sentinel
func (e *StatusError) Unwrap() error {
	return e.kind
}

func kindForStatus(code int) error {
	switch {
	case code == 400:
		return ErrValidationFailed
	case code == 401 || code == 403:
		return ErrPermissionDenied
	case code == 404:
		return ErrNotFound
	case code == 409:
		return ErrConflict
	case code >= 500:
		return ErrStoreUnavailable
	default:
		return ErrUnexpectedStatus
	}
}
