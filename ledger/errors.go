/*
errors.go - Centralized error types for the ledger

ERROR CATEGORIES:
  1. NotFound            - referenced credit line, customer, store or user is missing
  2. InsufficientBalance - consumption would exceed the approved limit
  3. ReferentialConflict - delete blocked by dependents or outstanding debt
  4. Validation          - caller data the core refuses to act on
  5. Persistence         - the durable store rejected a write

Every failure leaves the in-memory collections untouched.

USAGE:
  if errors.Is(err, ledger.ErrInsufficientBalance) { ... }

  var ib *ledger.InsufficientBalanceError
  if errors.As(err, &ib) { fmt.Println(ib.Shortfall) }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrReferentialConflict = errors.New("referential conflict")
	ErrValidation          = errors.New("validation failed")
	ErrPersistence         = errors.New("persistence failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "credit line", "customer", "store", "user"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	CreditLineID CreditLineID
	Available    decimal.Decimal
	Requested    decimal.Decimal
	Shortfall    decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, shortfall %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ConflictError explains why a delete was refused.
type ConflictError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot delete %s %q: %s", e.Kind, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrReferentialConflict }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func notFound(kind, id string) error { return &NotFoundError{Kind: kind, ID: id} }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to the caller's request
// rather than a failure of the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrReferentialConflict) ||
		errors.Is(err, ErrValidation)
}
