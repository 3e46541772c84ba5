package service

import (
	"errors"
	"fmt"

	"carenote-server/internal/repository"
)

// Error kinds returned by services. Handlers classify them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage failure")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, what)
}

func forbidden(msg string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, msg)
}

// storageError maps a repository failure onto a service kind.
// Missing rows become ErrNotFound for what, everything else ErrStorage.
func storageError(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, what, err)
}
