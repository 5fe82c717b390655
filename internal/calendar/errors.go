package calendar

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an event id does not exist for the user.
	ErrNotFound = errors.New("event not found")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid event")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) work.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
