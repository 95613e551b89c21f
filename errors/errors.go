// Package errors defines the error kinds surfaced by the codec: configuration
// errors raised on first use of a misdeclared type, and encode/decode errors
// raised per call. Errors carry a stack via github.com/pkg/errors.
package errors

import (
	"github.com/pkg/errors"
)

// Kind classifies a codec error.
type Kind int

const (
	// KindConfiguration marks a type whose declaration cannot be served:
	// missing structural metadata or an enum without an unrecognized-value
	// sentinel. Raised at first use of the type, never retried.
	KindConfiguration Kind = iota + 1
	// KindEncode marks an encode call that cannot produce canonical JSON.
	KindEncode
	// KindDecode marks malformed or semantically invalid JSON input.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindEncode:
		return "encode error"
	case KindDecode:
		return "decode error"
	default:
		return "unknown error"
	}
}

// Error is a kind-tagged codec error.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.kind.String() + ": " + e.err.Error() }

func (e *Error) Unwrap() error { return e.err }

// Kind reports the error class.
func (e *Error) Kind() Kind { return e.kind }

// Configuration returns a new KindConfiguration error.
func Configuration(format string, args ...interface{}) error {
	return &Error{kind: KindConfiguration, err: errors.Errorf(format, args...)}
}

// Encode returns a new KindEncode error.
func Encode(format string, args ...interface{}) error {
	return &Error{kind: KindEncode, err: errors.Errorf(format, args...)}
}

// Decode returns a new KindDecode error.
func Decode(format string, args ...interface{}) error {
	return &Error{kind: KindDecode, err: errors.Errorf(format, args...)}
}

// WrapDecode tags err as a decode error with additional context. A nil err
// returns nil.
func WrapDecode(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if is(err, KindDecode) {
		return &Error{kind: KindDecode, err: errors.WithMessagef(err, format, args...)}
	}
	return &Error{kind: KindDecode, err: errors.Wrapf(err, format, args...)}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return is(err, KindConfiguration) }

// IsEncode reports whether err is an encode error.
func IsEncode(err error) bool { return is(err, KindEncode) }

// IsDecode reports whether err is a decode error.
func IsDecode(err error) bool { return is(err, KindDecode) }

func is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}
