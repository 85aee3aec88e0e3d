// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package traverse provides primitives for concurrent traversal of
// indexed collections, such as the fragments of a portal document.
package traverse

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/log"
)

// A T is a traverser: it invokes functions over the indices of a
// collection with bounded concurrency.
type T struct {
	// Limit is the maximum number of concurrent invocations per
	// traversal. Zero denotes no limit.
	Limit int
}

// Limit returns a traverser with limit n.
func Limit(n int) T {
	if n <= 0 {
		log.Panicf("traverse.Limit: invalid limit: %d", n)
	}
	return T{Limit: n}
}

// Parallel is the traverser for CPU-bound work such as bulk
// decryption. It allows a small multiple of GOMAXPROCS invocations.
var Parallel = T{Limit: 2 * runtime.GOMAXPROCS(0)}

// Each invokes fn(i) for 0 <= i < n. It returns after all
// invocations complete, or once the first one fails, in which case
// that error is returned. Panics in fn are propagated to the caller.
func (t T) Each(n int, fn func(i int) error) error {
	var err error
	if t.Limit == 0 || t.Limit >= n {
		err = each(n, fn)
	} else {
		err = t.eachLimit(n, fn)
	}
	if p, ok := err.(panicErr); ok {
		panic(fmt.Sprintf("traverse child: %v\n%s", p.v, p.stack))
	}
	return err
}

func each(n int, fn func(i int) error) error {
	var (
		once errors.Once
		wg   sync.WaitGroup
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			once.Set(apply(fn, i))
		}(i)
	}
	wg.Wait()
	return once.Err()
}

// eachLimit runs t.Limit workers that pull indices from a shared
// counter until it passes n or an invocation fails.
func (t T) eachLimit(n int, fn func(i int) error) error {
	var (
		once errors.Once
		wg   sync.WaitGroup
		next int64
	)
	wg.Add(t.Limit)
	for w := 0; w < t.Limit; w++ {
		go func() {
			defer wg.Done()
			for once.Err() == nil {
				i := int(atomic.AddInt64(&next, 1) - 1)
				if i >= n {
					return
				}
				once.Set(apply(fn, i))
			}
		}()
	}
	wg.Wait()
	return once.Err()
}

// Range splits [0, n) into at most t.Limit contiguous ranges and
// invokes fn once per range.
func (t T) Range(n int, fn func(start, end int) error) error {
	m := n
	if t.Limit > 0 && t.Limit < n {
		m = t.Limit
	}
	return t.Each(m, func(i int) error {
		start, end := i*n/m, (i+1)*n/m
		if start >= end {
			return nil
		}
		return fn(start, end)
	})
}

// Each performs unbounded concurrent traversal over n elements. It
// is shorthand for (T{}).Each.
func Each(n int, fn func(i int) error) error {
	return T{}.Each(n, fn)
}

func apply(fn func(i int) error, i int) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicErr{v, debug.Stack()}
		}
	}()
	return fn(i)
}

type panicErr struct {
	v     interface{}
	stack []byte
}

func (p panicErr) Error() string { return fmt.Sprint(p.v) }
