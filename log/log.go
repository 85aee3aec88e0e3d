// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log provides leveled logging for the portal client. Messages
// are written to an Outputter; the default one writes through Go's
// log package and honors the level set by the -log flag (see
// AddFlags).
//
// Package functions log at Info level. Messages at other levels are
// written with the level's own methods, for example
//
//	log.Debug.Printf("handshake: server key has %d bits", n)
//
// Components that log on behalf of one session use a Prefix so that
// their messages can be told apart. Key material, passphrases and
// decrypted payloads are never logged.
package log

import (
	"fmt"
	"os"
)

// An Outputter receives leveled log messages.
type Outputter interface {
	// Level is the most verbose level the outputter accepts.
	Level() Level
	// Output writes s at the given level. Calldepth counts the stack
	// frames above Output's caller, as in log.Output.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs newOut and returns the previous outputter. It
// must not be called concurrently with logging.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the installed outputter.
func GetOutputter() Outputter { return out }

// At tells whether messages at level are currently written.
func At(level Level) bool { return level <= out.Level() }

// Output writes s at level with the given call depth.
func Output(calldepth int, level Level, s string) error {
	return out.Output(calldepth+1, level, s)
}

// Level is a verbosity level. An outputter at level L writes messages
// of every level M <= L.
type Level int

const (
	// Off disables all output.
	Off = Level(-3)
	// Error is for failures the user has to act on.
	Error = Level(-2)
	// Info is the default level.
	Info = Level(0)
	// Debug is for protocol traces.
	Debug = Level(1)
)

var levelNames = map[Level]string{
	Off:   "off",
	Error: "error",
	Info:  "info",
	Debug: "debug",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	if l < 0 {
		panic("invalid log level")
	}
	return fmt.Sprintf("debug%d", l)
}

func (l Level) output(prefix string, s string) {
	if At(l) {
		_ = out.Output(3, l, prefix+s)
	}
}

// Print writes its arguments at level l, formatted as by fmt.Sprint.
func (l Level) Print(v ...interface{}) { l.output("", fmt.Sprint(v...)) }

// Printf writes its arguments at level l, formatted as by
// fmt.Sprintf.
func (l Level) Printf(format string, v ...interface{}) {
	l.output("", fmt.Sprintf(format, v...))
}

// Print writes its arguments at Info level.
func Print(v ...interface{}) { Info.output("", fmt.Sprint(v...)) }

// Printf writes its arguments at Info level.
func Printf(format string, v ...interface{}) { Info.output("", fmt.Sprintf(format, v...)) }

// Fatal writes its arguments at Error level and exits with status 1.
func Fatal(v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf is like Fatal with a format string.
func Fatalf(format string, v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Panic writes its arguments at Error level and panics with the
// message.
func Panic(v ...interface{}) {
	s := fmt.Sprint(v...)
	_ = out.Output(2, Error, s)
	panic(s)
}

// Panicf is like Panic with a format string.
func Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	_ = out.Output(2, Error, s)
	panic(s)
}

// Prefix prepends "prefix: " to every message it writes.
type Prefix string

// Printf writes at Info level.
func (p Prefix) Printf(format string, v ...interface{}) {
	Info.output(string(p)+": ", fmt.Sprintf(format, v...))
}

// Debugf writes at Debug level.
func (p Prefix) Debugf(format string, v ...interface{}) {
	Debug.output(string(p)+": ", fmt.Sprintf(format, v...))
}

// Errorf writes at Error level.
func (p Prefix) Errorf(format string, v ...interface{}) {
	Error.output(string(p)+": ", fmt.Sprintf(format, v...))
}
