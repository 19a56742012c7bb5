package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned when no order has the requested id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failure")
	// ErrInvalidStatus is returned for unknown status names.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrPersistence is matched by every PersistenceError.
	ErrPersistence = errors.New("persistence failure")
	// ErrIDCollision is returned when an allocated id is already taken.
	ErrIDCollision = errors.New("order id already in use")
)

// ValidationError rejects a draft before anything is written.
type ValidationError struct {
	Field  string
	Reason string

	sentinel error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation, and ErrInvalidStatus for status errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || (e.sentinel != nil && target == e.sentinel)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a failure of the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
