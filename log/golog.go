// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"flag"
	"fmt"
	"io"
	golog "log"
	"sync"
)

// Flags of the Go standard logger, re-exported for SetFlags.
const (
	Ldate         = golog.Ldate
	Ltime         = golog.Ltime
	Lmicroseconds = golog.Lmicroseconds
	Lshortfile    = golog.Lshortfile
	LstdFlags     = golog.LstdFlags
)

var (
	golevel  = Info
	flagOnce sync.Once
)

// AddFlags registers the -log flag with flag.CommandLine.
func AddFlags() { AddFlagsTo(flag.CommandLine) }

// AddFlagsTo registers the -log flag with fs. Only the first call has
// an effect.
func AddFlagsTo(fs *flag.FlagSet) {
	flagOnce.Do(func() {
		fs.Var(new(levelFlag), "log", "log level: off, error, info or debug")
	})
}

// SetFlags sets the Go standard logger's output flags.
func SetFlags(flag int) { golog.SetFlags(flag) }

// SetOutput sets the Go standard logger's destination.
func SetOutput(w io.Writer) { golog.SetOutput(w) }

// SetPrefix sets the Go standard logger's prefix.
func SetPrefix(prefix string) { golog.SetPrefix(prefix) }

// SetLevel sets the level of the default outputter. It should be
// called before any logging.
func SetLevel(level Level) { golevel = level }

// ParseLevel returns the level with the given name.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return Off, fmt.Errorf("invalid log level %q", name)
}

type levelFlag struct{ name string }

func (f *levelFlag) String() string {
	if f == nil {
		return ""
	}
	return f.name
}

func (f *levelFlag) Set(name string) error {
	l, err := ParseLevel(name)
	if err != nil {
		return err
	}
	SetLevel(l)
	f.name = name
	return nil
}

func (*levelFlag) Get() interface{} { return golevel }

type gologOutputter struct{}

func (gologOutputter) Level() Level { return golevel }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if level > golevel {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
