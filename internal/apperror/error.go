package apperror

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a failure. It survives every layer
// between the record store and the HTTP response.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap keeps cause reachable through errors.Is / errors.As while the message
// stays safe to show to a caller.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     cause,
	}
}

// KindOf reports the kind of err. Deadline and cancellation errors that were
// never classified count as store unavailability; anything else unknown is
// internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindStoreUnavailable
	}

	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable is true only for transient persistence failures. Callers still
// must not blindly retry mutations.
func Retryable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}
