// Package apperr defines the error taxonomy shared by services, the HTTP
// layer and the API client.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies an application error and decides its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
)

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by services. Code is a stable
// five-digit number whose first three digits are the HTTP status.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a 400 error. When fields are present and message is
// empty the field messages are joined into the summary.
func Validation(code int, message string, fields ...FieldError) *Error {
	if message == "" {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, f.Message)
		}
		message = "Validation failed: " + strings.Join(parts, ", ")
	}
	return &Error{Kind: KindValidation, Code: code, Message: message, Fields: fields}
}

func Unauthorized(code int, message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: code, Message: message}
}

func Forbidden(code int, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func NotFound(code int, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code int, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func TooManyRequests(code int, message string) *Error {
	return &Error{Kind: KindTooManyRequests, Code: code, Message: message}
}

// Internal wraps an underlying cause. The cause is logged, never rendered
// outside development mode.
func Internal(code int, message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: code, Message: message, Err: cause}
}

// As extracts an *Error from err, or wraps unknown errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(50000, "Internal server error", err)
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
