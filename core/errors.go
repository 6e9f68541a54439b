package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError reports malformed or out-of-range input. It names the
// offending field so the caller can correct it; it is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PricingNotFoundError means no pricing rate exists for a (provider, model)
// pair. Recording fails closed on this error rather than storing a zero
// cost, so pricing-data gaps surface instead of silently under-billing.
type PricingNotFoundError struct {
	Provider string
	Model    string
}

func (e *PricingNotFoundError) Error() string {
	return fmt.Sprintf("no pricing found for provider %q model %q", e.Provider, e.Model)
}

// IsPricingNotFoundError checks if an error is a pricing lookup failure
func IsPricingNotFoundError(err error) bool {
	var pe *PricingNotFoundError
	return errors.As(err, &pe)
}

// AuthorizationError means the caller lacks access to the referenced project.
type AuthorizationError struct {
	ProjectID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller is not authorized to access project %s", e.ProjectID)
}

// IsAuthorizationError checks if an error is an authorization failure
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
