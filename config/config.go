// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config provides a registry of named, parameterized
// instances and profiles that configure them.
//
// Packages register instances in init functions:
//
//	config.Register("lanis/session", func(inst *config.Constructor) {
//		bits := inst.Int("key-bits", 128, "modulus size of session keys")
//		inst.New = func() (interface{}, error) {
//			return Options{KeyBits: *bits}, nil
//		}
//	})
//
// A Profile stores parameter values, either set directly
// (Profile.Set("lanis/session.key-bits", "256")) or parsed from
// profile text:
//
//	param lanis/session key-bits = 256
//	param lanis/session (
//		ajax-url = "https://portal.example/ajax.php"
//		timeout = "30s"
//	)
//
// and constructs instances with Profile.Instance. Application
// returns the process-wide profile that is configured by the flags
// registered with RegisterFlags.
package config

import (
	"sync"

	"github.com/grailbio/lanis/errors"
)

var (
	globalsMu sync.Mutex
	globals   = make(map[string]func(*Constructor))
)

// Register registers a global instance with the provided name.
// configure is invoked for every construction of the instance; it
// must define its parameters and set Constructor.New. Register panics
// if the name is already registered.
func Register(name string, configure func(*Constructor)) {
	globalsMu.Lock()
	defer globalsMu.Unlock()
	if globals[name] != nil {
		panic("config.Register: instance with name " + name + " has already been registered")
	}
	globals[name] = configure
}

// configure returns a freshly configured instance for name.
func configure(name string) (*Constructor, error) {
	globalsMu.Lock()
	f := globals[name]
	globalsMu.Unlock()
	if f == nil {
		return nil, errors.E(errors.NotExist, "config: no instance named", name)
	}
	inst := newConstructor(name)
	f(inst)
	if inst.New == nil {
		return nil, errors.E(errors.Invalid, "config: instance", name, "does not define New")
	}
	return inst, nil
}
