// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package keycrypt implements an API for storing and retrieving
// opaque blobs of data, such as encrypted account secrets. Keycrypt
// multiplexes several backends, both local (macOS Keychain, files)
// and remote (AWS KMS and S3).
package keycrypt

import "github.com/grailbio/lanis/errors"

// ErrNoSuchSecret is returned by Secret.Get for secrets that were
// never written. It has kind errors.NotExist.
var ErrNoSuchSecret = errors.E(errors.NotExist, "no such secret")

// Secret represents a single object. Secret objects are
// uninterpreted bytes that are stored securely.
type Secret interface {
	// Get retrieves the current value of this secret. If the secret
	// does not exist, Get returns ErrNoSuchSecret.
	Get() ([]byte, error)
	// Put writes a new value for this secret.
	Put([]byte) error
}

// Keycrypt represents a secure secret storage.
type Keycrypt interface {
	// Lookup returns the named secret. A secret is returned even if
	// it does not yet exist; its Get then returns ErrNoSuchSecret.
	Lookup(name string) Secret
}

// Resolver returns the Keycrypt for a URL host.
type Resolver interface {
	Resolve(host string) Keycrypt
}

type funcResolver func(string) Keycrypt

func (f funcResolver) Resolve(host string) Keycrypt { return f(host) }

// ResolverFunc adapts f to a Resolver.
func ResolverFunc(f func(string) Keycrypt) Resolver { return funcResolver(f) }

type static []byte

// Static returns a read-only secret with value b.
func Static(b []byte) Secret { return static(b) }

func (s static) Get() ([]byte, error) { return []byte(s), nil }
func (s static) Put([]byte) error {
	return errors.E(errors.Invalid, "static secrets cannot be written")
}
