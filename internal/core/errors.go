package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for caller policy: whether it may be
// retried, by whom, and how it is reported.
type ErrorKind string

const (
	// KindLockBusy: another operation holds the key. Retryable by caller
	// policy only, never automatically in a tight loop.
	KindLockBusy ErrorKind = "LOCK_BUSY"
	// KindDuplicatePayment: replay or client bug. Permanent, never retried.
	KindDuplicatePayment ErrorKind = "DUPLICATE_PAYMENT"
	// KindRetryableConflict: optimistic-lock/CAS failure. Safe to retry with
	// a fresh read of current state.
	KindRetryableConflict ErrorKind = "RETRYABLE_CONFLICT"
	// KindTransient: network/database blip, eligible for backoff retry.
	KindTransient ErrorKind = "TRANSIENT_INFRASTRUCTURE"
	// KindTerminal: retry budget exhausted, surfaced for manual intervention.
	KindTerminal ErrorKind = "TERMINAL"
	// KindValidation: malformed input, rejected immediately.
	KindValidation ErrorKind = "VALIDATION"
)

// Error is a classified domain error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a classified error wrapping a cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification of err, or empty string for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
