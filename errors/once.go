// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"sync"
	"sync/atomic"
)

// Once keeps the first non-nil error set by any of several
// goroutines. The zero Once is ready to use.
type Once struct {
	// Ignored errors are dropped by Set.
	Ignored []error

	mu  sync.Mutex
	err atomic.Value // holds onceErr
}

type onceErr struct{ err error }

// Err returns the first error passed to Set, or nil.
func (o *Once) Err() error {
	if v, ok := o.err.Load().(onceErr); ok {
		return v.err
	}
	return nil
}

// Set records err unless it is nil, ignored, or an error was recorded
// already.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	for _, ignored := range o.Ignored {
		if err == ignored {
			return
		}
	}
	o.mu.Lock()
	if o.err.Load() == nil {
		o.err.Store(onceErr{err})
	}
	o.mu.Unlock()
}
