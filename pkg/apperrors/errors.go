// Package apperrors defines the failure kinds surfaced by the reservation engine.
//
// Every failure carries a stable Kind plus a human readable reason. The wrapped
// cause, if any, is for logs only and is never rendered to callers.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the stable, caller-visible category of a failure.
type Kind string

const (
	InsufficientInventory Kind = "InsufficientInventory"
	NotFound              Kind = "NotFound"
	InvalidState          Kind = "InvalidState"
	Expired               Kind = "Expired"
	PaymentRejected       Kind = "PaymentRejected"
	VerificationFailed    Kind = "VerificationFailed"
	AlreadyCheckedIn      Kind = "AlreadyCheckedIn"
	AvailabilityUnknown   Kind = "AvailabilityUnknown"
	IssuanceDegraded      Kind = "IssuanceDegraded"
	LedgerDegraded        Kind = "LedgerDegraded"
	PersistenceDegraded   Kind = "PersistenceDegraded"
	InvalidArgument       Kind = "InvalidArgument"
	Internal              Kind = "Internal"
)

// Error is a typed failure.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package-level sentinels
// work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Sentinels for errors.Is checks.
var (
	ErrInsufficientInventory = &Error{Kind: InsufficientInventory}
	ErrNotFound              = &Error{Kind: NotFound}
	ErrInvalidState          = &Error{Kind: InvalidState}
	ErrExpired               = &Error{Kind: Expired}
	ErrPaymentRejected       = &Error{Kind: PaymentRejected}
	ErrVerificationFailed    = &Error{Kind: VerificationFailed}
	ErrAvailabilityUnknown   = &Error{Kind: AvailabilityUnknown}
	ErrInvalidArgument       = &Error{Kind: InvalidArgument}
)

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind that keeps err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// ReasonOf returns the caller-safe reason for err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}
