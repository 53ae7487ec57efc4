package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrConfiguration is returned when a worker is run before its required
	// parameters (point generation, model function, strategy, ...) are set.
	ErrConfiguration = errors.New("configuration error")

	// ErrInput is returned when a data container or coordinate shape is
	// inconsistent with the declared axes or arity.
	ErrInput = errors.New("input error")

	// ErrNotEvaluable marks an experiment or FOM value that could not be computed.
	ErrNotEvaluable = errors.New("not evaluable")

	// Storage errors
	ErrNotFound = errors.New("resource not found")
)

// Error constructors with context
func NewConfigurationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func NewInputError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInput)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DuplicateNameWarning is a non-fatal diagnostic raised when a named entry
// replaces an existing one in a registry.
type DuplicateNameWarning struct {
	Registry string
	Name     string
	At       Timestamp
}

func (w *DuplicateNameWarning) Error() string {
	return fmt.Sprintf("%s with name %s already existed, replacing", w.Registry, w.Name)
}
