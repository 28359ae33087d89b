// Package perr defines the four error categories of spec.md §7 (Error
// Handling Design), grounded on the teacher's chtml/err.go ComponentError
// wrapping-error pattern. ClientError carries a path and implements Unwrap
// and Is; InternalException and FatalPassError implement Unwrap; no type
// here carries a source span.
package perr

import (
	"errors"
	"fmt"
)

// ClientError is malformed input or an unparseable wikitext construct that
// is recoverable locally: the pipeline emits an error span and continues.
type ClientError struct {
	Msg  string
	Path string // DOM path to the node where the error was detected, "/"-joined
	Err  error
}

func (e *ClientError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

func (e *ClientError) Unwrap() error { return e.Err }

func (e *ClientError) Is(target error) bool {
	var ce *ClientError
	return errors.As(target, &ce)
}

// NewClientError builds a ClientError with msg and an optional wrapped
// cause.
func NewClientError(path, msg string, cause error) *ClientError {
	return &ClientError{Msg: msg, Path: path, Err: cause}
}

// InternalException is a pipeline misconfiguration: an unknown recipe, an
// unknown option key, an assertion violation. It is never recovered; it
// aborts the document.
type InternalException struct {
	Msg string
	Err error
}

func (e *InternalException) Error() string {
	if e.Err != nil {
		return "internal: " + e.Msg + ": " + e.Err.Error()
	}
	return "internal: " + e.Msg
}

func (e *InternalException) Unwrap() error { return e.Err }

func NewInternalException(msg string, cause error) *InternalException {
	return &InternalException{Msg: msg, Err: cause}
}

// EncapsulationError is raised by C10 Phase C when a template range cannot
// be legitimately wrapped (no element target exists before range.end). It
// is logged and the range is skipped; markers are still removed so the
// output HTML is clean (spec.md §4.6 "Failure behaviour").
type EncapsulationError struct {
	RangeID string
	Msg     string
}

func (e *EncapsulationError) Error() string {
	return fmt.Sprintf("cannot encapsulate range %s: %s", e.RangeID, e.Msg)
}

// FatalPassError wraps any uncaught error inside a post-process pass
// (spec.md §7: "Fatal pass error"). The driver wraps the error a Pass
// returns in a FatalPassError, logs it at error level, stops
// post-processing, and returns no DOM.
type FatalPassError struct {
	Pass string
	Err  error
}

func (e *FatalPassError) Error() string {
	return fmt.Sprintf("fatal error in pass %q: %s", e.Pass, e.Err)
}

func (e *FatalPassError) Unwrap() error { return e.Err }

func NewFatalPassError(pass string, cause error) *FatalPassError {
	return &FatalPassError{Pass: pass, Err: cause}
}

// AssertionError marks a programmer error: a cycle detected in C10 Phase B's
// subsumed map, or a flipped range reaching the overlap-merge branch
// (spec.md §7, "Assertion failures in Phases B/C of C10 ... are
// programmer errors").
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string { return "assertion failed: " + e.Msg }
