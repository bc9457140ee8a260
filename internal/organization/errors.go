package organization

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNameConflict       = errors.New("organization name already exists")
	ErrEmailConflict      = errors.New("admin email already registered")
	ErrNotFound           = errors.New("organization not found")
	ErrPartitionNotFound  = errors.New("partition not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("invalid token payload")
	ErrForbidden          = errors.New("not an admin of this organization")
)

// validationError carries a client-facing message and matches ErrValidation.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}
