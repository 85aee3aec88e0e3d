// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package file implements a file-based keycrypt. Importing it
// registers the schemes "file" (absolute paths) and "localfile"
// (paths under $HOME/.keycrypt/<host>).
package file

import (
	"os"
	"path/filepath"

	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
)

func init() {
	keycrypt.RegisterFunc("file", func(h string) keycrypt.Keycrypt {
		return New("/")
	})
	keycrypt.RegisterFunc("localfile", func(h string) keycrypt.Keycrypt {
		// h is taken to be a namespace
		return New(filepath.Join(os.Getenv("HOME"), ".keycrypt", h))
	})
}

// New returns a Keycrypt that stores each secret in a file below dir.
func New(dir string) keycrypt.Keycrypt {
	return &crypt{dir}
}

type crypt struct{ path string }

func (c *crypt) Lookup(name string) keycrypt.Secret {
	return fileSecret(filepath.Join(c.path, name))
}

type fileSecret string

func (f fileSecret) Get() ([]byte, error) {
	b, err := os.ReadFile(string(f))
	if os.IsNotExist(err) {
		return nil, keycrypt.ErrNoSuchSecret
	}
	if err != nil {
		return nil, errors.E("reading secret", string(f), err)
	}
	return b, nil
}

// Put replaces the secret atomically by renaming a temporary file
// in the same directory.
func (f fileSecret) Put(b []byte) error {
	dir := filepath.Dir(string(f))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.E("creating secret directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".secret")
	if err != nil {
		return errors.E("writing secret", string(f), err)
	}
	write := func() (err error) {
		defer errors.CleanUp(tmp.Close, &err)
		_, err = tmp.Write(b)
		return err
	}
	if err := write(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.E("writing secret", string(f), err)
	}
	if err := os.Rename(tmp.Name(), string(f)); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.E("writing secret", string(f), err)
	}
	return nil
}
