package core

import (
	"errors"
	"strings"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrNotFound                = errors.New("not found")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrCategoryNotFound        = errors.New("category not found")
	ErrDuplicateLabel          = errors.New("duplicate label")
	ErrAmountTooSmall          = errors.New("amount must be greater than 0")
	ErrExceedsRemaining        = errors.New("amount exceeds remaining balance")
	ErrInvalidUnit             = errors.New("invalid currency unit")
	ErrRateProviderUnavailable = errors.New("exchange rate provider unavailable")
	ErrUnauthenticated         = errors.New("unauthenticated")

	// ErrVersionConflict is returned by stores when a conditional write
	// lost against a concurrent writer. Services retry on it.
	ErrVersionConflict = errors.New("version conflict")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems. It unwraps to ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a problem with the named field.
func (e *ValidationError) Add(path, message string) {
	e.Fields = append(e.Fields, FieldError{Path: path, Message: message})
}

// OrNil returns nil when no field problems were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsClientError reports whether err belongs to a caller-recoverable class.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrEntryNotFound, ErrCategoryNotFound,
		ErrDuplicateLabel, ErrAmountTooSmall, ErrExceedsRemaining, ErrInvalidUnit,
		ErrUnauthenticated,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
