// Package service holds the parking core: spot allocation, the booking
// lifecycle, access code issuing and access validation.  Handlers call
// into it with plain ids and receive typed errors whose Kind decides the
// HTTP status.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure in a machine-checkable way.
type Kind string

const (
	KindValidation    Kind = "validation_error"
	KindNotFound      Kind = "not_found"
	KindNoCapacity    Kind = "no_capacity"
	KindNotAuthorized Kind = "not_authorized"
	KindInvalidState  Kind = "invalid_state"
	KindCrossFacility Kind = "cross_facility"
	KindTransient     Kind = "transient"
)

// Error is returned by every service operation that fails for a reason the
// caller should see.  Message is safe to show to end users; Err keeps the
// underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func wrapError(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind carried by err, or "" for untyped errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
