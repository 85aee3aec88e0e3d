// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package keycrypt

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/lanis/errors"
)

// localSchemes are tried in order for URLs with the scheme "local".
var localSchemes = []string{"keychain", "localfile"}

type registry struct {
	mu        sync.Mutex
	resolvers map[string]Resolver
}

var schemes = registry{resolvers: make(map[string]Resolver)}

func (r *registry) set(scheme string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resolver == nil {
		delete(r.resolvers, scheme)
		return
	}
	r.resolvers[scheme] = resolver
}

func (r *registry) get(scheme string) (Resolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scheme != "local" {
		if resolver := r.resolvers[scheme]; resolver != nil {
			return resolver, nil
		}
		return nil, errors.E(errors.NotExist, "unknown keycrypt scheme", scheme)
	}
	for _, s := range localSchemes {
		if resolver := r.resolvers[s]; resolver != nil {
			return resolver, nil
		}
	}
	return nil, errors.E(errors.NotExist, "no local keycrypt scheme registered, tried", strings.Join(localSchemes, ", "))
}

// Register makes resolver handle URLs with the given scheme,
// replacing any previous registration.
func Register(scheme string, resolver Resolver) { schemes.set(scheme, resolver) }

// RegisterFunc is Register for a function.
func RegisterFunc(scheme string, f func(host string) Keycrypt) {
	Register(scheme, ResolverFunc(f))
}

func unregister(scheme string) { schemes.set(scheme, nil) }

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	schemes.mu.Lock()
	defer schemes.mu.Unlock()
	names := make([]string, 0, len(schemes.resolvers))
	for name := range schemes.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the secret named by a URL scheme://host/name. The
// scheme's resolver maps the host to a Keycrypt, which looks up the
// name. The scheme "local" uses the first registered of "keychain"
// and "localfile".
func Lookup(rawurl string) (Secret, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, errors.E(errors.Invalid, "parsing keycrypt url", err)
	}
	if u.Scheme == "" {
		return nil, errors.E(errors.Invalid, "keycrypt url has no scheme:", rawurl)
	}
	resolver, err := schemes.get(u.Scheme)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(u.Host).Lookup(strings.TrimPrefix(u.Path, "/")), nil
}

// Get returns the value of the secret at rawurl.
func Get(rawurl string) ([]byte, error) {
	s, err := Lookup(rawurl)
	if err != nil {
		return nil, err
	}
	return s.Get()
}

// Put sets the value of the secret at rawurl.
func Put(rawurl string, data []byte) error {
	s, err := Lookup(rawurl)
	if err != nil {
		return err
	}
	return s.Put(data)
}
