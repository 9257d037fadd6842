// Package errs defines the error kinds shared by the flowdoc packages.
//
// Every failure surfaced by the core is an *Error carrying a Kind, so callers
// can branch on the category with the Is* helpers regardless of how deeply
// the error was wrapped.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error.
type Kind string

const (
	// KindValidation indicates an input specification that cannot be normalized.
	KindValidation Kind = "VALIDATION"

	// KindSerialization indicates a value with no storage-safe representation.
	KindSerialization Kind = "SERIALIZATION"

	// KindGraphIntegrity indicates a broken flow graph: dangling parent,
	// duplicate db_id or malformed index.
	KindGraphIntegrity Kind = "GRAPH_INTEGRITY"

	// KindLookup indicates a uuid, index or db_id absent from a derived view
	// or from the store.
	KindLookup Kind = "LOOKUP"

	// KindLocked indicates a lock compare-and-set lost against another holder.
	KindLocked Kind = "LOCKED"
)

// Error is the error type returned by flowdoc packages.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed (e.g. "record.build_initial_job").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a KindValidation error.
func Validation(op, format string, args ...any) *Error {
	return newf(KindValidation, op, format, args...)
}

// Serialization creates a KindSerialization error.
func Serialization(op, format string, args ...any) *Error {
	return newf(KindSerialization, op, format, args...)
}

// GraphIntegrity creates a KindGraphIntegrity error.
func GraphIntegrity(op, format string, args ...any) *Error {
	return newf(KindGraphIntegrity, op, format, args...)
}

// Lookup creates a KindLookup error.
func Lookup(op, format string, args ...any) *Error {
	return newf(KindLookup, op, format, args...)
}

// Locked creates a KindLocked error.
func Locked(op, format string, args ...any) *Error {
	return newf(KindLocked, op, format, args...)
}

// Wrap attaches kind and op to an existing error.
// A nil err yields nil.
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	e := newf(kind, op, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsSerialization reports whether err is a serialization error.
func IsSerialization(err error) bool { return KindOf(err) == KindSerialization }

// IsGraphIntegrity reports whether err is a graph integrity error.
func IsGraphIntegrity(err error) bool { return KindOf(err) == KindGraphIntegrity }

// IsLookup reports whether err is a lookup error.
func IsLookup(err error) bool { return KindOf(err) == KindLookup }

// IsLocked reports whether err is a lock conflict.
func IsLocked(err error) bool { return KindOf(err) == KindLocked }
