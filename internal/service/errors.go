package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a service failure. The API layer maps kinds to status codes.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidInput Kind = "invalid_input"
	KindRateLimited  Kind = "rate_limited"
)

// Error is a client-safe failure. Message never contains internal detail;
// the wrapped cause, if any, is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any other *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds for every forbidden failure regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidInput = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrRateLimited  = &Error{Kind: KindRateLimited, Message: "too many attempts, try again later"}
)

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func unauthorized(message string) *Error { return newError(KindUnauthorized, message) }
func forbidden(message string) *Error    { return newError(KindForbidden, message) }
func notFound(message string) *Error     { return newError(KindNotFound, message) }
func conflict(message string) *Error     { return newError(KindConflict, message) }

func invalidInput(message string, details any) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Details: details}
}

// withCause attaches an internal cause for logging without changing the message.
func (e *Error) withCause(err error) *Error {
	copied := *e
	copied.cause = err
	return &copied
}

// KindOf returns the kind of err, or "" for internal failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Client-facing messages shared by several operations.
const (
	msgInvalidCredentials = "invalid username or password"
	msgAccountInactive    = "account is not activated, check your email"
	msgAccessDenied       = "access denied"
	msgInvalidReset       = "invalid or expired reset link"
	msgInvalidActivation  = "invalid or expired activation link"
	msgForgotSent         = "if this email is registered, a reset link has been sent"
)

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
