// Package apperr defines the error taxonomy shared by every store and the
// auth resolver. Callers classify with errors.Is against the Kind sentinels;
// the HTTP layer maps each kind to a distinct status code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindTenantIsolation
	KindNotFound
	KindConflict
	KindBackingStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTenantIsolation:
		return "tenant_isolation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBackingStore:
		return "backing_store"
	}
	return "unknown"
}

// Sentinels for errors.Is classification. They carry no message of their
// own; concrete errors are built with the constructors below.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrTenantIsolation = &Error{Kind: KindTenantIsolation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrBackingStore    = &Error{Kind: KindBackingStore}
)

// Error is a kind-tagged error. Field names the offending input field for
// validation failures, empty otherwise.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Field, e.Message, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so
// errors.Is(err, apperr.ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of err, or 0 if err is not an apperr error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Validationf(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func TenantIsolation(message string) *Error {
	return &Error{Kind: KindTenantIsolation, Message: message}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func BackingStore(err error) *Error {
	return &Error{Kind: KindBackingStore, Message: "backing store failure", Err: err}
}
