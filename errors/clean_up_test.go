// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanUp(t *testing.T) {
	var (
		closeErr  = errors.New("close: disk full")
		returnErr = errors.New("write: short write")
	)
	run := func(ret, cleanup error) (err error) {
		defer CleanUp(func() error { return cleanup }, &err)
		return ret
	}
	assert.NoError(t, run(nil, nil))
	assert.Equal(t, closeErr, run(nil, closeErr))
	assert.Equal(t, returnErr, run(returnErr, nil))

	err := run(returnErr, closeErr)
	assert.Contains(t, err.Error(), returnErr.Error())
	assert.Contains(t, err.Error(), closeErr.Error())
}
