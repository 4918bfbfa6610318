// Package errors provides typed errors for the cyberkb engine.
// Callers dispatch on the error Kind rather than on message strings.
package errors

import (
	"errors"
	"fmt"
)

// Error is the base error type for engine errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "cyberdb.Ingest")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindInvalidInput is an input whose overall structure is unusable
	// (missing required file, wrong layout). Fatal for that invocation.
	KindInvalidInput

	// KindNotFound is a path or named plugin that does not exist.
	KindNotFound

	// KindUnsupportedFormat is a file or protocol the engine knows it
	// cannot parse.
	KindUnsupportedFormat

	// KindNoCoverage is a requested control with no registered scanner.
	KindNoCoverage

	// KindInternal is an unexpected engine failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindNoCoverage:
		return "no_coverage"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a new Error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with kind and operation context.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsUnsupportedFormat reports whether err is an unsupported-format error.
func IsUnsupportedFormat(err error) bool { return KindOf(err) == KindUnsupportedFormat }

// IsNoCoverage reports whether err is a coverage error.
func IsNoCoverage(err error) bool { return KindOf(err) == KindNoCoverage }
