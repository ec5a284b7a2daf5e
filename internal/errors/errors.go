// Package errors defines the error taxonomy shared by the collaborator clients
// and the HTTP API of the health service.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

var (
	// ErrNotFound indicates a record was not found in the inventory store
	ErrNotFound = stderrors.New("not found")

	// ErrUnavailable indicates a peer service cannot currently serve requests
	ErrUnavailable = stderrors.New("service unavailable")

	// ErrSignalTimeout indicates the caller's deadline expired while a request
	// was in flight. Retry loops must stop on it.
	ErrSignalTimeout = stderrors.New("request timed out")

	// ErrConflict indicates the system state does not allow the requested action
	ErrConflict = stderrors.New("conflict")

	// ErrNoEndpoint indicates the service catalog has no URL for a service
	ErrNoEndpoint = stderrors.New("no endpoint in service catalog")
)

// HTTPError is returned when a peer service answers with an error status
type HTTPError struct {
	Service string
	Method  string
	URL     string
	Status  int
	Fault   string
}

func (e *HTTPError) Error() string {
	if e.Fault != "" {
		return fmt.Sprintf("%s %s %s returned %d: %s", e.Service, e.Method, e.URL, e.Status, e.Fault)
	}
	return fmt.Sprintf("%s %s %s returned %d", e.Service, e.Method, e.URL, e.Status)
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(service, method, url string, status int, fault string) *HTTPError {
	return &HTTPError{
		Service: service,
		Method:  method,
		URL:     url,
		Status:  status,
		Fault:   fault,
	}
}

// CommunicationError is returned when a peer service could not be reached
// at all: DNS failure, refused connection, open circuit, or timeout.
type CommunicationError struct {
	Service string
	URL     string
	Cause   error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("failed to communicate with %s at %s: %v", e.Service, e.URL, e.Cause)
}

// Unwrap returns the underlying error
func (e *CommunicationError) Unwrap() error {
	return e.Cause
}

// Is lets CommunicationError match ErrUnavailable
func (e *CommunicationError) Is(target error) bool {
	return target == ErrUnavailable
}

// NewCommunicationError wraps cause as a communication failure. Deadline
// and network timeout errors are additionally marked with ErrSignalTimeout.
func NewCommunicationError(service, url string, cause error) *CommunicationError {
	if isTimeout(cause) && !stderrors.Is(cause, ErrSignalTimeout) {
		cause = fmt.Errorf("%w: %w", ErrSignalTimeout, cause)
	}
	return &CommunicationError{
		Service: service,
		URL:     url,
		Cause:   cause,
	}
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return stderrors.As(err, &timeout) && timeout.Timeout()
}

// IsHTTPError checks if err is or wraps an HTTPError and returns it
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if stderrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsCommunicationError checks if err is or wraps a CommunicationError
func IsCommunicationError(err error) bool {
	var commErr *CommunicationError
	return stderrors.As(err, &commErr)
}

// IsSignalTimeout checks if err is or wraps ErrSignalTimeout
func IsSignalTimeout(err error) bool {
	return stderrors.Is(err, ErrSignalTimeout)
}

// IsNotFound checks if err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsUnavailable checks if err is or wraps ErrUnavailable
func IsUnavailable(err error) bool {
	return stderrors.Is(err, ErrUnavailable)
}

// IsConflict checks if err is or wraps ErrConflict
func IsConflict(err error) bool {
	return stderrors.Is(err, ErrConflict)
}

// ConflictError returns a wrapped conflict error with context
func ConflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// NotFoundError returns a wrapped not found error with context
func NotFoundError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
