// Package apperror defines the error taxonomy shared by the settlement engine
// and the services. Handlers translate it into HTTP responses via apierror.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindValidation            Kind = iota // caller-correctable input problem
	KindStateConflict                     // a transition guard rejected the operation
	KindDependencyUnavailable             // persistence / register / transport unreachable
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindDependencyUnavailable:
		return "dependency_unavailable"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Codes used by callers that need to tell conflicts apart.
const (
	CodeRegisterClosed = "register_closed"
	CodeTerminalStatus = "terminal_status"
	CodeTableState     = "table_state"
	CodeStaleWrite     = "stale_write"
	CodeDuplicate      = "duplicate"
	CodeRegisterOpen   = "register_open"
)

// Error is the typed failure returned by every core operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a KindValidation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Validationf creates a KindValidation error with a formatted message.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationFields creates a KindValidation error carrying per-field problems.
func ValidationFields(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Conflict creates a KindStateConflict error.
func Conflict(code, msg string) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: msg}
}

// Conflictf creates a KindStateConflict error with a formatted message.
func Conflictf(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps err as a KindDependencyUnavailable error for operation op.
func Unavailable(op string, err error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Message: op + ": dependency unavailable", Err: err}
}

// NotFound creates a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// KindOf reports the Kind of err, or false if err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func IsValidation(err error) bool  { return is(err, KindValidation) }
func IsConflict(err error) bool    { return is(err, KindStateConflict) }
func IsUnavailable(err error) bool { return is(err, KindDependencyUnavailable) }
func IsNotFound(err error) bool    { return is(err, KindNotFound) }

// CodeOf returns the Code of err when it is an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
