package actions

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrOwnerRoleProtected = errors.New("the Owner role cannot be renamed or deleted")
	ErrLastOwner          = errors.New("cannot remove the last Owner of the organization")
	ErrCannotSuspendSelf  = errors.New("you cannot suspend yourself")
)

// ValidationError reports a missing or malformed input field. It is returned
// before any storage call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// notFound wraps ErrNotFound with the kind of entity that was missing.
func notFound(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}

// conflict wraps ErrConflict with the kind of entity that collided.
func conflict(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrConflict)
}
