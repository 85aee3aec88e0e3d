// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the error type of the portal client. An
// Error has a Kind that names the failure mode (transport, malformed
// data, cipher, handshake, serialization) and a Severity that tells
// callers whether the operation may be repeated. Errors chain: an
// Error wrapping another Error takes over its kind unless it sets its
// own, so that
//
//	errors.E("decrypting challenge", err)
//
// annotates err without hiding what went wrong. Errors interoperate
// with the standard library's errors.Is, errors.As and Unwrap.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/lanis/log"
)

// Separator is written between the messages of chained Errors.
var Separator = ":\n\t"

// Error is the error type returned by the portal client's packages.
// Errors are constructed with E.
type Error struct {
	// Kind classifies the error; Other if unknown.
	Kind Kind
	// Severity tells whether the operation may be repeated.
	Severity Severity
	// Message describes the failed operation.
	Message string
	// Err is the cause, if any.
	Err error
}

// E builds an Error from its arguments, interpreted by type:
//
//	Kind      the error's kind
//	Severity  the error's severity
//	string    appended to the message, separated by a space
//	*Error    the cause; copied so that the original is not modified
//	error     the cause
//
// Any other argument yields an Error of kind Invalid describing the
// bad call.
//
// When the cause is an *Error, a kind or severity that is not given
// is inherited from it and cleared on the copy, so that it is printed
// once. Otherwise the kind is derived from the cause: context
// cancellation gives Canceled, an expired deadline or a Timeout()
// method gives Timeout, a missing file gives NotExist, and an *Error
// reachable through Unwrap lends its kind. A cause with a true
// Temporary() method makes the severity Temporary.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no arguments")
	}
	e := new(Error)
	var msg []string
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			msg = append(msg, arg)
		case *Error:
			cause := *arg
			if len(args) == 1 {
				return &cause
			}
			e.Err = &cause
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: argument of type %T from %s:%d: %v", arg, file, line, arg)
			return &Error{Kind: Invalid, Message: fmt.Sprintf("errors.E: unsupported argument %v of type %T", arg, arg)}
		}
	}
	e.Message = strings.Join(msg, " ")
	if e.Err != nil {
		e.inherit()
	}
	return e
}

func (e *Error) inherit() {
	if cause, ok := e.Err.(*Error); ok {
		if e.Kind == Other || e.Kind == cause.Kind {
			e.Kind, cause.Kind = cause.Kind, Other
		}
		if e.Severity == Unknown || e.Severity == cause.Severity {
			e.Severity, cause.Severity = cause.Severity, Unknown
		}
		return
	}
	if t, ok := e.Err.(interface{ Temporary() bool }); ok && t.Temporary() && e.Severity == Unknown {
		e.Severity = Temporary
	}
	if e.Kind == Other {
		e.Kind = classify(e.Err)
	}
}

// classify derives a kind from a foreign error. Cancellation is
// checked first so that a chain matching several kinds is classified
// the same way every time.
func classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case os.IsNotExist(err), errors.Is(err, os.ErrNotExist):
		return NotExist
	}
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return Timeout
	}
	var e *Error
	if errors.As(err, &e) {
		return Recover(e).Kind
	}
	return Other
}

// Recover returns err as an *Error, wrapping it if needed. Recover
// returns nil for a nil error.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	write := func(sep, s string) {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s)
	}
	if e.Message != "" {
		write(": ", e.Message)
	}
	if e.Kind != Other {
		write(": ", e.Kind.String())
	}
	if e.Severity != Unknown {
		write(" ", "("+e.Severity.String()+")")
	}
	switch cause := e.Err.(type) {
	case nil:
	case *Error:
		write(Separator, cause.Error())
	default:
		write(": ", cause.Error())
	}
	return b.String()
}

// Timeout tells whether e has kind Timeout.
func (e *Error) Timeout() bool { return e.Kind == Timeout }

// Temporary tells whether e's severity is Temporary or Retriable.
func (e *Error) Temporary() bool { return e.Severity <= Temporary }

// Unwrap returns the cause of e.
func (e *Error) Unwrap() error { return e.Err }

// Is matches e against the standard library's sentinels for its
// kind: context.Canceled, context.DeadlineExceeded and
// os.ErrNotExist.
func (e *Error) Is(target error) bool {
	switch target {
	case context.Canceled:
		return e.Kind == Canceled
	case context.DeadlineExceeded:
		return e.Kind == Timeout
	case os.ErrNotExist:
		return e.Kind == NotExist
	}
	return false
}

// Is tells whether err has the given kind. Annotations of kind Other
// are skipped until an Error with a kind is found.
func Is(kind Kind, err error) bool {
	for e := Recover(err); e != nil; {
		if e.Kind != Other {
			return e.Kind == kind
		}
		next, ok := e.Err.(*Error)
		if !ok {
			break
		}
		e = next
	}
	return false
}

// IsTemporary tells whether err is likely temporary.
func IsTemporary(err error) bool { return Recover(err).Temporary() }

// Match tells whether the non-zero fields of err1 equal those of
// err2, recursing on chained Errors. Foreign causes are compared by
// message. Match is meant for tests.
func Match(err1, err2 error) bool {
	e1, e2 := Recover(err1), Recover(err2)
	switch {
	case e1.Kind != Other && e1.Kind != e2.Kind:
		return false
	case e1.Severity != Unknown && e1.Severity != e2.Severity:
		return false
	case e1.Message != "" && e1.Message != e2.Message:
		return false
	case e1.Err == nil:
		return true
	case e2.Err == nil:
		return false
	}
	if _, ok := e1.Err.(*Error); ok {
		return Match(e1.Err, e2.Err)
	}
	return e1.Err.Error() == e2.Err.Error()
}

// New returns an error with the given text, as errors.New.
func New(msg string) error { return errors.New(msg) }
