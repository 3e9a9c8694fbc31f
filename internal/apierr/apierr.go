// Package apierr names the error kinds from the error handling design and
// maps them to HTTP status codes at the surface boundary.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the error kinds from the error handling design. Kinds
// outside the HTTP-relevant set (cloud transient/permanent, context
// overflow, tool error, store error) are handled by their own components.
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInternal
)

// Error carries a Kind alongside a user-facing message. Never leaks which
// of email/password was wrong for authentication failures — callers must
// construct a generic message for those.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(format string, a ...any) *Error {
	return newf(KindValidation, format, a...)
}

func Unauthenticated(format string, a ...any) *Error {
	return newf(KindUnauthenticated, format, a...)
}

func Forbidden(format string, a ...any) *Error {
	return newf(KindForbidden, format, a...)
}

func NotFound(format string, a ...any) *Error {
	return newf(KindNotFound, format, a...)
}

func Internal(format string, a ...any) *Error {
	return newf(KindInternal, format, a...)
}

func newf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Status maps an error to the HTTP status the surface should return. Any
// error that isn't an *Error maps to 500, matching the propagation policy
// ("the HTTP surface maps typed errors to status codes").
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindValidation:
			return http.StatusBadRequest
		case KindUnauthenticated:
			return http.StatusUnauthorized
		case KindForbidden:
			return http.StatusForbidden
		case KindNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// Message returns the safe-to-expose message for an error. Unknown errors
// never leak internal detail to the client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
