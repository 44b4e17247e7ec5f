// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes or CLI exit messages by callers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate fingerprint or label).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid, references a stale entity,
	// or violates a review rule.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStateTransition indicates the operation is not valid for the entity's current status.
	ErrStateTransition = errors.New("invalid state transition")

	// ErrExternalService indicates a parser, signer or registrar call failed or timed out.
	ErrExternalService = errors.New("external service error")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the actor doesn't have permission.
	ErrForbidden = errors.New("forbidden")
)

// ExternalServiceError describes a failed round trip to one of the external services.
// It matches ErrExternalService with errors.Is.
type ExternalServiceError struct {
	Service    string
	Operation  string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Service, e.Operation)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ExternalServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalService}
	}
	return []error{ErrExternalService, e.Err}
}

// NewExternalServiceError builds an ExternalServiceError. Timeouts, transport failures and
// 5xx responses are flagged retryable.
func NewExternalServiceError(service, operation string, statusCode int, err error) error {
	return &ExternalServiceError{
		Service:    service,
		Operation:  operation,
		StatusCode: statusCode,
		Retryable:  statusCode == 0 || statusCode >= 500,
		Err:        err,
	}
}

// IsRetryable reports whether err carries an ExternalServiceError flagged retryable.
func IsRetryable(err error) bool {
	var extErr *ExternalServiceError
	if errors.As(err, &extErr) {
		return extErr.Retryable
	}
	return false
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join for aggregated per-item failures.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
