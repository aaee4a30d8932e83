package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error leaving this package matches exactly one of them
// with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("username or email already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("user not found")
	ErrInternal          = errors.New("internal error")
)

// ValidationError lists the offending fields and their rule.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return ErrValidation.Error() + ": " + strings.Join(names, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule}}
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
