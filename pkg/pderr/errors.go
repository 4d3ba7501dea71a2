// Package pderr defines the error taxonomy shared by the gopd packages.
package pderr

import (
	"fmt"
	"strings"
)

// Kind categorizes an error.
type Kind string

const (
	KindInitialization  Kind = "initialization"   // instance creation, ring buffer init
	KindInstanceMissing Kind = "instance_missing" // no current instance on this thread
	KindStringEncoding  Kind = "string_encoding"  // embedded NUL or invalid UTF-8
	KindAlreadyReleased Kind = "already_released" // handle already closed or unbound
	KindSubscription    Kind = "subscription"     // bind returned null
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindEngine          Kind = "engine" // native call reported failure
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrInitialization  = &Error{Kind: KindInitialization}
	ErrInstanceMissing = &Error{Kind: KindInstanceMissing}
	ErrStringEncoding  = &Error{Kind: KindStringEncoding}
	ErrAlreadyReleased = &Error{Kind: KindAlreadyReleased}
	ErrSubscription    = &Error{Kind: KindSubscription}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrEngine          = &Error{Kind: KindEngine}
)

// Error is the structured error type returned by gopd packages.
type Error struct {
	Cause  error
	Op     string
	Kind   Kind
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without an Op
// matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// New creates an error of the given kind.
func New(op string, kind Kind, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Op: op, Kind: kind, Detail: detail}
}

// Wrap creates an error of the given kind around cause.
func Wrap(op string, kind Kind, cause error, detail string) *Error {
	return &Error{Op: op, Kind: kind, Cause: cause, Detail: detail}
}

// Convenience constructors for the common kinds.

// Initialization reports a failed instance or queue initialization.
func Initialization(op, detail string) *Error {
	return New(op, KindInitialization, detail)
}

// InstanceMissing reports an engine call made with no current instance.
func InstanceMissing(op string) *Error {
	return New(op, KindInstanceMissing, "no instance is current on this thread")
}

// StringEncoding reports a string the engine cannot carry.
func StringEncoding(op string, s []byte, reason string) *Error {
	preview := s
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return New(op, KindStringEncoding, "%s: %q", reason, preview)
}

// NotFound reports a missing receiver, array or patch.
func NotFound(op, what, name string) *Error {
	return New(op, KindNotFound, "%s %q not found", what, name)
}

// InvalidInput reports a caller error.
func InvalidInput(op, detail string, args ...any) *Error {
	return New(op, KindInvalidInput, detail, args...)
}
