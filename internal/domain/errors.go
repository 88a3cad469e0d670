package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStreamNotFound = errors.New("stream not found")
	ErrNotOwner       = errors.New("you are not the owner of this stream")
	ErrNotConnected   = errors.New("wallet not connected")
)

// ValidationError reports a missing or invalid field, raised before any store call.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotConnectedError is the ValidationError returned when no wallet is connected.
func NotConnectedError() *ValidationError {
	return &ValidationError{Field: "wallet_address", Reason: ErrNotConnected.Error(), Err: ErrNotConnected}
}

// PersistenceError wraps a store read, write or subscribe failure.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MediaAccessError reports a capture device that was denied or unavailable.
type MediaAccessError struct {
	Source string
	Err    error
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media %s unavailable: %v", e.Source, e.Err)
}

func (e *MediaAccessError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
