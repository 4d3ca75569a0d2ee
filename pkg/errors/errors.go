// Package errors defines the sentinel errors shared by the dialect compiler,
// the matcher runtime and the HTTP surface, plus an AppError wrapper that
// carries a human-readable detail and an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrField is returned when a clause names a field the registry cannot
	// resolve, or when a strict dialect cannot determine any field.
	ErrField = errors.New("field error")
	// ErrConfig covers malformed range values, disallowed bare wildcards and
	// missing collaborators at construction time.
	ErrConfig = errors.New("config error")

	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// FieldErrorf builds an ErrField AppError.
func FieldErrorf(format string, args ...any) *AppError {
	return Newf(ErrField, http.StatusBadRequest, format, args...)
}

// ConfigErrorf builds an ErrConfig AppError.
func ConfigErrorf(format string, args ...any) *AppError {
	return Newf(ErrConfig, http.StatusBadRequest, format, args...)
}

// IsField reports whether err is, or wraps, ErrField.
func IsField(err error) bool { return errors.Is(err, ErrField) }

// IsConfig reports whether err is, or wraps, ErrConfig.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrField), errors.Is(err, ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
