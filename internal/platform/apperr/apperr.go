// Package apperr classifies service errors so the HTTP layer can pick a
// status code without inspecting messages. Services return errors built with
// the constructors below; anything unclassified is an internal error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Match with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrTooLarge     = errors.New("payload too large")
	ErrUnavailable  = errors.New("service unavailable")
)

// Error carries a client-safe message, its kind and an optional cause that
// is only ever logged.
type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Message is the text safe to show to clients.
func (e *Error) Message() string { return e.msg }

func (e *Error) Is(target error) bool { return target == e.kind }

func (e *Error) Unwrap() error { return e.cause }

func newf(kind error, format string, args ...interface{}) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(ErrValidation, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newf(ErrUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(ErrForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(ErrNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(ErrConflict, format, args...)
}

func TooLarge(format string, args ...interface{}) error {
	return newf(ErrTooLarge, format, args...)
}

// Unavailable marks a failure of an external dependency. cause is kept for
// logging and never sent to the client.
func Unavailable(cause error, format string, args ...interface{}) error {
	return &Error{kind: ErrUnavailable, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Status maps err to an HTTP status code. Unclassified errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for err, or "" when err is
// not classified and must be hidden.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return ""
}
