package stt

import (
	"errors"
	"fmt"
)

// Kind classifies a transcription failure so callers can tell "try again"
// (connection, timeout) from "fix configuration" from "internal bug"
// (protocol on a malformed success).
type Kind string

const (
	KindConfiguration Kind = "configuration" // missing credentials or setup
	KindState         Kind = "state"         // invalid start/stop ordering
	KindConnection    Kind = "connection"    // transport failure, non-2xx response
	KindProtocol      Kind = "protocol"      // malformed or error-bearing message
	KindTimeout       Kind = "timeout"       // deadline exceeded with no terminal signal
	KindIO            Kind = "io"            // local file read/write failure
)

// Error is the tagged error value every operation surfaces to the caller.
// Backend names the component that failed; Err carries the underlying cause
// when one exists.
type Error struct {
	Kind    Kind
	Backend string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b []byte
	if e.Backend != "" {
		b = append(b, e.Backend...)
		b = append(b, ": "...)
	}
	b = append(b, string(e.Kind)...)
	b = append(b, ": "...)
	b = append(b, e.Msg...)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", b, e.Err)
	}
	return string(b)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
