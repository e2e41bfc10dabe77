package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the target item (or the relation being removed) does not exist
	ErrNotFound = errors.New("content not found")

	// ErrConflict is returned when a like or save relation already exists
	ErrConflict = errors.New("relation already exists")

	// ErrUnauthorized is returned when an operation needs a viewer and none was supplied
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
