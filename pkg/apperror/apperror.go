// Package apperror defines the error taxonomy shared by the services and
// translated into HTTP statuses by pkg/response.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the request/response layer
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidAssignment Kind = "INVALID_ASSIGNMENT"
	KindConflict          Kind = "CONFLICT"
	KindValidation        Kind = "VALIDATION_FAILED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindTransaction       Kind = "TRANSACTION_FAILED"
)

// Kind sentinels, usable as errors.Is(err, apperror.NotFound)
var (
	NotFound          = &Error{Kind: KindNotFound}
	InvalidAssignment = &Error{Kind: KindInvalidAssignment}
	Conflict          = &Error{Kind: KindConflict}
	Validation        = &Error{Kind: KindValidation}
	Unauthorized      = &Error{Kind: KindUnauthorized}
	Forbidden         = &Error{Kind: KindForbidden}
	Transaction       = &Error{Kind: KindTransaction}
)

// Error is a classified, human-readable failure
type Error struct {
	Kind    Kind
	Message string
	// Index is set when the failure belongs to one item of a batch
	Index *int
	Err   error
}

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Index != nil {
		return fmt.Sprintf("item %d: %s", *e.Index, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels by kind and everything else by identity
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message == "" && t.Index == nil && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// batchFailure is the client-facing message for an unclassified item error.
// The underlying error stays in Err for logging.
const batchFailure = "could not save item, please retry"

// AtIndex marks err as the failure of batch item i. Unclassified errors
// become transaction failures since the batch was rolled back.
func AtIndex(i int, err error) *Error {
	idx := i
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Message: ae.Message, Index: &idx, Err: err}
	}
	return &Error{Kind: KindTransaction, Message: batchFailure, Index: &idx, Err: err}
}

// KindOf returns the kind of err, or "" when err is unclassified
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IndexOf returns the batch index attached to err, if any
func IndexOf(err error) (int, bool) {
	var ae *Error
	for e := err; errors.As(e, &ae); e = ae.Err {
		if ae.Index != nil {
			return *ae.Index, true
		}
		if ae.Err == nil {
			break
		}
	}
	return 0, false
}
