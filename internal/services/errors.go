package services

import (
	"sort"
	"strings"

	"github.com/mdobak/go-xerrors"
)

// Error kinds returned by the services. Callers match them with errors.Is.
var (
	ErrValidation   = xerrors.Message("validation failed")
	ErrBadRequest   = xerrors.Message("bad request")
	ErrUnauthorized = xerrors.Message("unauthorized")
	ErrForbidden    = xerrors.Message("forbidden")
	ErrNotFound     = xerrors.Message("not found")
)

// Error is a service failure that is safe to show to the client.
type Error struct {
	kind    error
	message string
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
}

func (e *Error) Error() string { return e.message }

func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, message string) error {
	return &Error{kind: kind, message: message}
}

// BadRequest reports a request that cannot be applied, e.g. liking a tweet twice.
func BadRequest(message string) error { return newError(ErrBadRequest, message) }

func Unauthorized(message string) error { return newError(ErrUnauthorized, message) }

func Forbidden(message string) error { return newError(ErrForbidden, message) }

func NotFound(message string) error { return newError(ErrNotFound, message) }

// Invalid builds a validation error from field messages.
func Invalid(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return &Error{kind: ErrValidation, message: strings.Join(parts, "; "), Fields: fields}
}
