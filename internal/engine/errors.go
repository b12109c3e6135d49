package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrBanNotFound is returned when a ban lookup references an IP or id
	// with no active record.
	ErrBanNotFound = errors.New("ban not found")

	// ErrGeoUnavailable marks a transient geo resolver failure. Enrichment
	// is skipped; ingestion proceeds.
	ErrGeoUnavailable = errors.New("geo resolver unavailable")
)

// ValidationError rejects malformed input without affecting existing state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
