// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Reconciliation errors.
	ErrPeriodNotFound     = errors.New("period not found")
	ErrRateNotFound       = errors.New("exchange rate not found")
	ErrNoAccountAvailable = errors.New("no account available for estimated transaction")
	ErrEstimateConflict   = errors.New("concurrent estimate conflict")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Only the
// estimate-conflict race qualifies; everything else indicates a data or
// setup problem the operator must fix.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEstimateConflict)
}
