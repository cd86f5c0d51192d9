// Package apperr defines the error taxonomy shared by the session, recovery and
// federation flows. Every fallible operation returns an *Error (possibly wrapped)
// whose Kind the HTTP layer translates into a status code and a stable
// {success:false, error:{code, message}} body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure. Its string value is the public error code.
type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindConflict           Kind = "CONFLICT"
	KindConfiguration      Kind = "CONFIGURATION_ERROR"
	KindTokenExchange      Kind = "TOKEN_EXCHANGE_ERROR"
	KindIdentityFetch      Kind = "IDENTITY_FETCH_ERROR"
	KindNoVerifiedEmail    Kind = "NO_VERIFIED_EMAIL"
	KindPersistence        Kind = "PERSISTENCE_ERROR"
	KindTokenInvalid       Kind = "TOKEN_INVALID"
	KindHashing            Kind = "HASHING_ERROR"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Error is a classified application error. Message is safe to show to the end
// user; Err holds the underlying cause and is never serialized.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func InvalidCredentials() *Error { return New(KindInvalidCredentials, "invalid credentials") }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func Forbidden(message string) *Error { return New(KindForbidden, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func Configuration(message string) *Error { return New(KindConfiguration, message) }

func TokenInvalid(cause error) *Error { return Wrap(KindTokenInvalid, "token is invalid", cause) }

func Hashing(cause error) *Error { return Wrap(KindHashing, "password hashing failed", cause) }

// Persistence reports an unavailable or failing user store.
func Persistence(cause error) *Error {
	return Wrap(KindPersistence, "user store unavailable", cause)
}

// Internal hides cause behind a generic message.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "an internal error occurred", cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "an internal error occurred"
}

// HTTPStatus maps err to a status code. One policy for every endpoint.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthorized, KindTokenInvalid:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNoVerifiedEmail:
		return http.StatusUnprocessableEntity
	case KindTokenExchange, KindIdentityFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
