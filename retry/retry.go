// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package retry implements backoff policies for repeated operations.
// The crypto packages never retry on their own; the session applies
// a policy when it repeats a failed handshake with a fresh key pair:
//
//	policy := retry.MaxTries(retry.Backoff(200*time.Millisecond, 5*time.Second, 2), 3)
//	for retries := 0; ; retries++ {
//		if err = attempt(); err == nil {
//			break
//		}
//		if err := retry.Wait(ctx, policy, retries); err != nil {
//			return err
//		}
//	}
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/grailbio/lanis/errors"
)

// Policy decides whether and when an operation is tried again.
type Policy interface {
	// Retry is called after the failure of try number retries,
	// counting from zero. It returns whether to try again, and after
	// how long.
	Retry(retries int) (bool, time.Duration)
}

// Wait sleeps for the wait that policy prescribes after the given
// number of retries. It fails with kind errors.TooManyTries if the
// policy gives up, with kind errors.Timeout if ctx's deadline would
// pass during the wait, and with ctx's error if ctx is done first.
func Wait(ctx context.Context, policy Policy, retries int) error {
	again, wait := policy.Retry(retries)
	if !again {
		return errors.E(errors.TooManyTries, fmt.Sprintf("gave up after %d tries", retries+1))
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
		return errors.E(errors.Timeout, "deadline is before the next try")
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type backoff struct {
	initial, max time.Duration
	factor       float64
}

// Backoff waits initial after the first failure and factor times
// longer after each further one, never more than max.
func Backoff(initial, max time.Duration, factor float64) Policy {
	return backoff{initial, max, factor}
}

func (b backoff) Retry(retries int) (bool, time.Duration) {
	wait := float64(b.initial) * math.Pow(b.factor, float64(retries))
	if math.IsNaN(wait) || wait > float64(b.max) {
		return true, b.max
	}
	return true, time.Duration(wait)
}

type jitter struct {
	Policy
	frac float64
}

// Jitter randomizes the waits of policy: the fraction frac of each
// wait is replaced by a uniformly distributed duration. A frac of 1
// gives waits anywhere between zero and the policy's; a frac of 0.5
// keeps at least half of each wait.
func Jitter(policy Policy, frac float64) Policy {
	if frac < 0 || frac > 1 {
		panic(fmt.Sprintf("retry.Jitter: fraction %v not in [0, 1]", frac))
	}
	return jitter{policy, frac}
}

func (j jitter) Retry(retries int) (bool, time.Duration) {
	again, wait := j.Policy.Retry(retries)
	if !again || wait <= 0 {
		return again, wait
	}
	fixed := time.Duration(float64(wait) * (1 - j.frac))
	return true, fixed + time.Duration(rand.Int63n(int64(wait-fixed)+1))
}

type maxTries struct {
	Policy
	n int
}

// MaxTries allows n tries in total, waiting as policy does between
// them. A nil policy retries immediately.
func MaxTries(policy Policy, n int) Policy {
	if n < 1 {
		panic(fmt.Sprintf("retry.MaxTries: %d tries", n))
	}
	return maxTries{policy, n}
}

func (m maxTries) Retry(retries int) (bool, time.Duration) {
	if retries+1 >= m.n {
		return false, 0
	}
	if m.Policy == nil {
		return true, 0
	}
	return m.Policy.Retry(retries)
}
