// Package errors provides standardized error types for the domain layer.
// These errors enable consistent categorization across the deposit,
// reconciliation and commission services and map cleanly onto HTTP and
// bot-facing responses.
package errors

import (
	"errors"
	"fmt"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount indicates an amount outside the offered denominations
	ErrInvalidAmount = errors.New("invalid deposit amount")

	// ErrInvalidState indicates a state transition was attempted on an
	// intent that is no longer pending. Callers treat this as a benign
	// no-op: the concurrent winner already moved the intent to a
	// terminal state.
	ErrInvalidState = errors.New("intent is not pending")

	// ErrUnroutableNotification indicates a bank notification whose
	// description does not contain an extractable user id
	ErrUnroutableNotification = errors.New("unroutable notification")

	// ErrDuplicateNotification indicates a bank transaction id that has
	// already been applied to a completed intent. Idempotent no-op.
	ErrDuplicateNotification = errors.New("duplicate notification")

	// ErrNoMatchingIntent indicates no pending intent matched the
	// notification's (user, amount) pair within the lookback window
	ErrNoMatchingIntent = errors.New("no matching pending intent")

	// ErrAlreadyEnrolled indicates the user already has an affiliate profile
	ErrAlreadyEnrolled = errors.New("affiliate already enrolled")

	// ErrUnauthorized indicates the request is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an unexpected persistence failure
	ErrInternal = errors.New("internal error")
)

// DomainError carries additional context alongside a category error
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target category
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(err error, code, message string) *DomainError {
	return &DomainError{Err: err, Code: code, Message: message}
}

// WithDetails attaches structured detail to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// Wrap annotates err with a message while preserving its category
func Wrap(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
