package errors

import (
	stderrors "errors"
	"fmt"

	"clusterkit/domain/core"
)

// Error codes reported by the CLI and the stores.
const (
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeStorageError  = "STORAGE_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError attaches a stable code and a context message to a cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is lets a bare AppError match the domain sentinel of its code.
func (e *AppError) Is(target error) bool {
	if e.Cause != nil {
		return false
	}
	switch e.Code {
	case CodeConfigInvalid:
		return target == core.ErrConfiguration
	case CodeInvalidInput:
		return target == core.ErrInput
	case CodeNotFound:
		return target == core.ErrNotFound
	}
	return false
}

// Wrap adds context to err. The code of an inner AppError is kept, domain
// sentinels are mapped onto their code, anything else is internal.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: GetCode(err), Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code carried by err, or CodeInternalError.
func GetCode(err error) string {
	var appErr *AppError
	switch {
	case stderrors.As(err, &appErr):
		return appErr.Code
	case core.IsConfigurationError(err):
		return CodeConfigInvalid
	case core.IsInputError(err):
		return CodeInvalidInput
	case core.IsNotFoundError(err):
		return CodeNotFound
	}
	return CodeInternalError
}

// ConfigInvalid reports a setup problem detected outside the domain packages.
func ConfigInvalid(message string) *AppError {
	return &AppError{Code: CodeConfigInvalid, Message: message}
}

func StorageError(message string, cause error) *AppError {
	return &AppError{Code: CodeStorageError, Message: message, Cause: cause}
}
