package core

import (
	"errors"
	"fmt"
)

// Field names reported by ValidationError.
const (
	FieldID       = "id"
	FieldAmount   = "amount"
	FieldType     = "type"
	FieldCategory = "category"
	FieldNote     = "note"
	FieldDate     = "date"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a number greater than zero")
	ErrInvalidType     = errors.New("type must be income or expense")
	ErrMissingCategory = errors.New("category is required")
	ErrEmptyCategory   = errors.New("category name cannot be empty")
	ErrInvalidDate     = errors.New("date must be in YYYY-MM-DD format")
	ErrNoteTooLong     = fmt.Errorf("note too long (max %d characters)", MaxNoteLength)
	ErrInvalidID       = errors.New("id must be positive")
	ErrDuplicateID     = errors.New("duplicate transaction id")
)

// ValidationError reports malformed or missing input. The ledger is left unchanged.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed read or write of the snapshot store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
