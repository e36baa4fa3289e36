// Package apperr defines the error kinds every domain service reports and the
// HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of the message it carries.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus returns the response status for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a sentinel with a kind attached. Compare with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

var (
	ErrMissingField          = newErr(KindValidation, "missing required field")
	ErrInvalidID             = newErr(KindValidation, "invalid id format")
	ErrInvalidRole           = newErr(KindValidation, "invalid role specified")
	ErrInvalidCredentials    = newErr(KindValidation, "invalid email or password")
	ErrInvalidOrExpiredToken = newErr(KindValidation, "invalid or expired token")
	ErrInvalidTransition     = newErr(KindValidation, "invalid status transition")
	ErrInvalidInput          = newErr(KindValidation, "invalid input")
	ErrUnauthenticated       = newErr(KindUnauthenticated, "authentication required")
	ErrIncorrectPassword     = newErr(KindUnauthenticated, "incorrect password")
	ErrForbidden             = newErr(KindForbidden, "access denied")
	ErrNotFound              = newErr(KindNotFound, "not found")
	ErrDuplicateEmail        = newErr(KindConflict, "email already in use")
	ErrConflict              = newErr(KindConflict, "resource was modified concurrently")
)

// Wrap annotates a sentinel with detail while keeping errors.Is working:
// Wrap(ErrMissingField, "email") reads "missing required field: email".
func Wrap(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of the first *Error in err's chain, or
// KindInternal when there is none.
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
