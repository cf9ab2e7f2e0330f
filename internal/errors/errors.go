// Package errors provides the error taxonomy surfaced to the operator:
// invalid range, upstream failure, malformed input file, and empty result.
// Errors carry a kind and an operation name for structured reporting, and
// wrap an underlying cause where one exists. There is no automatic retry at
// this level; transient-vs-permanent classification for the HTTP layer lives
// in internal/binance.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for exit-code selection and operator messages.
type Kind string

const (
	// KindInvalidRange means the requested time range falls outside the
	// upstream retention window or is otherwise unusable.
	KindInvalidRange Kind = "invalid_range"

	// KindUpstream means the upstream API returned a non-success status or
	// a payload that could not be decoded.
	KindUpstream Kind = "upstream"

	// KindFormat means an input table file is malformed.
	KindFormat Kind = "format"

	// KindEmptyResult means the upstream returned no data points for the
	// requested symbol and range.
	KindEmptyResult Kind = "empty_result"
)

// Error is the concrete error type used across the fetch and plot stages.
type Error struct {
	Kind Kind   // classification
	Op   string // logical operation, e.g. "binance.FetchMetric"
	Err  error  // wrapped cause, may be nil
	Msg  string // human-readable detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s [%s]: %v", e.Op, e.Msg, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s [%s]: %s", e.Op, e.Kind, e.Msg)
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is can match kind sentinels.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an Error with a formatted message and no wrapped cause.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// InvalidRange constructs a KindInvalidRange error.
func InvalidRange(op, format string, args ...interface{}) *Error {
	return New(KindInvalidRange, op, format, args...)
}

// Upstream constructs a KindUpstream error wrapping err. err may be nil when
// the status line alone describes the failure.
func Upstream(op string, err error, format string, args ...interface{}) *Error {
	return Wrap(KindUpstream, op, err, format, args...)
}

// Format constructs a KindFormat error wrapping err.
func Format(op string, err error, format string, args ...interface{}) *Error {
	return Wrap(KindFormat, op, err, format, args...)
}

// EmptyResult constructs a KindEmptyResult error.
func EmptyResult(op, format string, args ...interface{}) *Error {
	return New(KindEmptyResult, op, format, args...)
}

// KindOf returns the kind of err, or "" when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) has the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
