// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import "fmt"

// CleanUp calls cleanUp and records its error in *dst, the deferring
// function's named error result:
//
//	func writeSecret(f *os.File, b []byte) (err error) {
//		defer errors.CleanUp(f.Close, &err)
//		_, err = f.Write(b)
//		return err
//	}
//
// If *dst already holds an error, it is kept as the cause and the
// cleanup error is added to its message.
func CleanUp(cleanUp func() error, dst *error) {
	err := cleanUp()
	switch {
	case err == nil:
	case *dst == nil:
		*dst = err
	default:
		*dst = E(*dst, fmt.Sprintf("second error in cleanup: %v", err))
	}
}
