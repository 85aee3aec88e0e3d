// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package must checks conditions in the lanis command's setup code,
// where the only way to handle a failure is to stop. Library packages
// return errors instead.
package must

import (
	"fmt"

	"github.com/grailbio/lanis/log"
)

// Func reports a failed check and stops execution. Depth is the call
// depth of the code that made the check, suitable for log.Output.
// The default writes the message at log.Error and panics.
var Func = func(depth int, v ...interface{}) {
	msg := fmt.Sprint(v...)
	_ = log.Output(depth+1, log.Error, msg)
	panic(msg)
}

// Nil calls Func if err is not nil. The message is args, formatted
// as by fmt.Sprint, followed by err.
func Nil(err error, args ...interface{}) {
	if err == nil {
		return
	}
	if len(args) == 0 {
		Func(2, err)
		return
	}
	Func(2, fmt.Sprint(args...), ": ", err)
}

// Nilf is like Nil with a format string.
func Nilf(err error, format string, args ...interface{}) {
	if err != nil {
		Func(2, fmt.Sprintf(format, args...), ": ", err)
	}
}

// True calls Func with the message v if b is false.
func True(b bool, v ...interface{}) {
	if b {
		return
	}
	if len(v) == 0 {
		v = []interface{}{"must: check failed"}
	}
	Func(2, v...)
}
