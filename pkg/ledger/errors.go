package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidEntry is returned when an append request is malformed.
	ErrInvalidEntry = errors.New("invalid ledger entry")

	// ErrInsufficientBalance is returned when applying an entry would drive
	// a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrChainIntegrity is returned when a stored hash or link does not
	// match its recomputed value.
	ErrChainIntegrity = errors.New("chain integrity violation")

	// ErrSequenceConflict is returned by a store when the entry being
	// committed does not directly follow the current tail.
	ErrSequenceConflict = errors.New("sequence conflict")

	// ErrDuplicateIdempotencyKey is returned by a store when another entry
	// already carries the same idempotency key.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// ValidationError describes a rejected append request.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid ledger entry: %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidEntry.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEntry
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError names the balance that would have gone negative.
type InsufficientBalanceError struct {
	Entity    EntityRef
	Currency  string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

// Error implements the error interface.
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s in %s: have %s, need %s",
		e.Entity, e.Currency, e.Balance.String(), e.Requested.String())
}

// NewInsufficientBalanceError creates an InsufficientBalanceError for key.
func NewInsufficientBalanceError(key BalanceKey, balance, requested decimal.Decimal) *InsufficientBalanceError {
	return &InsufficientBalanceError{
		Entity:    key.Entity,
		Currency:  key.Currency,
		Balance:   balance,
		Requested: requested,
	}
}

// Is reports ErrInsufficientBalance.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// ChainIntegrityError identifies the first entry that failed verification.
type ChainIntegrityError struct {
	Sequence int64  `json:"sequence"`
	Reason   string `json:"reason"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Error implements the error interface.
func (e *ChainIntegrityError) Error() string {
	if e.Expected == "" && e.Actual == "" {
		return fmt.Sprintf("chain integrity violation at sequence %d: %s", e.Sequence, e.Reason)
	}
	return fmt.Sprintf("chain integrity violation at sequence %d: %s (expected %s, got %s)",
		e.Sequence, e.Reason, e.Expected, e.Actual)
}

// Is reports ErrChainIntegrity.
func (e *ChainIntegrityError) Is(target error) bool {
	return target == ErrChainIntegrity
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "commit", "tail", "query", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
