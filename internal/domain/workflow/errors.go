package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can map it to a response.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindDuplicateWorkflow Kind = "DUPLICATE_WORKFLOW"
	KindConfiguration     Kind = "CONFIGURATION"
	KindInvalidState      Kind = "INVALID_STATE"
	KindAuthorization     Kind = "AUTHORIZATION"
	KindInvalidAction     Kind = "INVALID_ACTION"
	KindUpstream          Kind = "UPSTREAM"
	KindValidation        Kind = "VALIDATION"
	KindInternal          Kind = "INTERNAL"
)

// Error is the typed error returned by every engine operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against a bare sentinel of the same kind, so
// errors.Is(err, ErrNotFound) holds for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicateWorkflow = &Error{Kind: KindDuplicateWorkflow}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrInvalidAction     = &Error{Kind: KindInvalidAction}
	ErrUpstream          = &Error{Kind: KindUpstream}
	ErrValidation        = &Error{Kind: KindValidation}
)

var (
	// ErrInvalidTransition is returned when the status machine has no transition for a trigger
	ErrInvalidTransition = &Error{Kind: KindInvalidState, Message: "invalid status transition"}

	// ErrGuardFailed is returned when every guarded transition for a trigger rejects it
	ErrGuardFailed = &Error{Kind: KindInvalidState, Message: "guard condition failed"}

	// ErrConcurrentModification is returned when an optimistic update loses a race
	ErrConcurrentModification = &Error{Kind: KindInvalidState, Message: "workflow was modified concurrently"}
)

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Duplicatef(format string, args ...interface{}) error {
	return newError(KindDuplicateWorkflow, format, args...)
}

func Configurationf(format string, args ...interface{}) error {
	return newError(KindConfiguration, format, args...)
}

func InvalidStatef(format string, args ...interface{}) error {
	return newError(KindInvalidState, format, args...)
}

func Unauthorizedf(format string, args ...interface{}) error {
	return newError(KindAuthorization, format, args...)
}

func InvalidActionf(format string, args ...interface{}) error {
	return newError(KindInvalidAction, format, args...)
}

func Validationf(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

// Upstream wraps a failed required collaborator call.
func Upstream(message string, err error) error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal when err is untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
