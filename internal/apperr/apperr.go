package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a business-rule failure so the API layer can pick a
// status code without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindBadRequest
	KindConflict
	KindPaymentFailed
)

// Error is a typed business failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports an absent entity.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an ownership mismatch.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports an invalid value or a violated business precondition.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a concurrent-modification failure such as insufficient stock.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// PaymentFailed reports a failure in the payment processing step.
func PaymentFailed(msg string, err error) *Error {
	return &Error{Kind: KindPaymentFailed, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
