// Package storeerr defines the error taxonomy shared by all store adapters.
//
// ConnectionError signals that an adapter could not establish or verify
// connectivity. StoreError wraps any failed store operation with the store
// name and operation for logging at the orchestration boundary. ErrCacheMiss
// and ErrNotFound are expected outcomes, not failures.
package storeerr

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss indicates a cache read found no entry. Read paths treat
	// it as absence and fall through to the primary store.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotFound indicates a lookup matched no record.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a write violated a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// ConnectionError indicates an adapter could not reach its backing store.
type ConnectionError struct {
	Store string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Store, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError wraps a connectivity failure for the named store.
func NewConnectionError(store string, cause error) *ConnectionError {
	return &ConnectionError{Store: store, Cause: cause}
}

// StoreError wraps a failed store operation with its store name and operation.
type StoreError struct {
	Store string
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Store, e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Wrap wraps a store operation failure. It returns nil when cause is nil so
// adapters can use it unconditionally on return paths.
func Wrap(store, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &StoreError{Store: store, Op: op, Cause: cause}
}

// IsCacheMiss reports whether err represents a cache miss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err represents a uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
