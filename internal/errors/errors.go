// Package errors provides domain-specific error types and sentinel errors
// for conversation turns. Every failure in a turn degrades to a user-visible
// reply; these types let callers decide which reply.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check these errors in your code.
var (
	// ErrClassifierUnavailable indicates the intent classifier failed or timed out.
	// Recovered by routing the turn to the default handler.
	ErrClassifierUnavailable = errors.New("intent classifier unavailable")

	// ErrMissingEntity indicates an intent matched but a required entity was absent.
	// Recovered locally by asking the user for the missing value.
	ErrMissingEntity = errors.New("missing expected entity")

	// ErrStoreUnavailable indicates a session read or write failed.
	// The turn is aborted without mutating state and the user gets an apology.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrUnknownIntent indicates the classifier returned an intent with no handler.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
)

// IsClassifierUnavailable reports whether err is or wraps ErrClassifierUnavailable.
func IsClassifierUnavailable(err error) bool { return errors.Is(err, ErrClassifierUnavailable) }

// IsMissingEntity reports whether err is or wraps ErrMissingEntity.
func IsMissingEntity(err error) bool { return errors.Is(err, ErrMissingEntity) }

// IsStoreUnavailable reports whether err is or wraps ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRateLimitExceeded reports whether err is or wraps ErrRateLimitExceeded.
func IsRateLimitExceeded(err error) bool { return errors.Is(err, ErrRateLimitExceeded) }

// IsInvalidInput reports whether err is or wraps ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets validation failures match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// EntityError records which entity an intent needed but did not receive.
type EntityError struct {
	Intent     string
	EntityType string
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("intent %s: entity %s not found", e.Intent, e.EntityType)
}

func (e *EntityError) Unwrap() error {
	return ErrMissingEntity
}

// NewEntityError creates a new missing-entity error.
func NewEntityError(intent, entityType string) *EntityError {
	return &EntityError{Intent: intent, EntityType: entityType}
}

// StoreError wraps a session store failure with the operation that failed.
type StoreError struct {
	Op  string // "get" or "put"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session store %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both the store sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// NewStoreError creates a new store error.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}
