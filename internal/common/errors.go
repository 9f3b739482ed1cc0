// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Identity errors.
	ErrUnauthorized = errors.New("user not authenticated")
	ErrUserNotFound = errors.New("user not found")

	// Input errors.
	ErrValidation       = errors.New("validation failed")
	ErrCategoryNotFound = errors.New("category not found")
	ErrTypeMismatch     = errors.New("category type does not match transaction type")

	// Database errors.
	ErrNotFound        = errors.New("not found")
	ErrPartialNotFound = errors.New("some records not found")
	ErrDuplicateEntry  = errors.New("duplicate entry")

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

// UserMessage returns the message meant for the user if err carries one,
// otherwise fallback. Internal error text is never returned.
func UserMessage(err error, fallback string) string {
	var ue *UserError
	if errors.As(err, &ue) && ue.UserMessage != "" {
		return ue.UserMessage
	}
	return fallback
}
