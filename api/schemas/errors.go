package schemas

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure into one of the stable categories exposed to
// API clients. The string values are part of the wire contract.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindTimeout           ErrorKind = "timeout"
	KindDriverUnavailable ErrorKind = "driver_unavailable"
	KindProtocol          ErrorKind = "protocol_error"
	KindAssertionFailed   ErrorKind = "assertion_failed"
	KindFatal             ErrorKind = "fatal"
)

// Error is the single error type shared by the engine's components. Op names
// the operation that failed ("driver.navigate", "pool.acquire"), Detail is a
// human-readable message, and Err holds the wrapped cause, if any.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind sentinels created with NewError(kind, "", "").
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// NewError builds an Error without a wrapped cause.
func NewError(kind ErrorKind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// WrapError builds an Error around an existing cause.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind from any error in the chain, defaulting to fatal
// for errors the engine did not classify.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// Sentinels for errors.Is checks where the op does not matter.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrDriverUnavailable = &Error{Kind: KindDriverUnavailable}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAssertionFailed   = &Error{Kind: KindAssertionFailed}
)
