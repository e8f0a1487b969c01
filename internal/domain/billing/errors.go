package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with concurrent state
	ErrConflict = errors.New("conflict")

	// ErrDuplicateNumber is returned by persistence when an invoice number is already taken
	ErrDuplicateNumber = fmt.Errorf("%w: invoice number already exists", ErrConflict)

	// ErrInvoiceCancelled is returned when a cancelled invoice is asked to change
	ErrInvoiceCancelled = errors.New("invoice is cancelled")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError describes a rejected field value
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when an invoice or one of its line items does not exist
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError is returned when invoice number assignment keeps colliding
type ConflictError struct {
	InvoiceNumber string
	Attempts      int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("invoice number %s still taken after %d attempts", e.InvoiceNumber, e.Attempts)
}

// Is lets errors.Is(err, ErrConflict) match
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
