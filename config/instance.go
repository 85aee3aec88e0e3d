// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/grailbio/lanis/errors"
)

// Constructor defines a global instance, as configured by Register.
// Typically an instance registers a set of parameters through the
// flags-like methods provided by Constructor. The value returned by New
// is configured by these parameters.
type Constructor struct {
	// New instantiates the value provided by this instance, and
	// configured by the parameters registered.
	New func() (interface{}, error)

	// Doc is a string describing the instance.
	Doc string

	name   string
	params map[string]*param
}

func newConstructor(name string) *Constructor {
	return &Constructor{name: name, params: make(map[string]*param)}
}

type param struct {
	help string
	set  func(string) error
	get  func() string
}

// Int registers an integer parameter with a default value. The returned
// pointer points to its value.
func (inst *Constructor) Int(name string, value int, help string) *int {
	p := new(int)
	inst.IntVar(p, name, value, help)
	return p
}

// IntVar registers an integer parameter with a default value. The parameter's
// value written to the location pointed to by ptr.
func (inst *Constructor) IntVar(ptr *int, name string, value int, help string) {
	*ptr = value
	inst.define(name, help, func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*ptr = v
		return nil
	}, func() string { return strconv.Itoa(*ptr) })
}

// String registers a string parameter with a default value. The returned pointer
// points to its value.
func (inst *Constructor) String(name string, value string, help string) *string {
	p := new(string)
	inst.StringVar(p, name, value, help)
	return p
}

// StringVar registers a string parameter with a default value. The parameter's
// value written to the location pointed to by ptr.
func (inst *Constructor) StringVar(ptr *string, name string, value string, help string) {
	*ptr = value
	inst.define(name, help, func(s string) error {
		*ptr = s
		return nil
	}, func() string { return *ptr })
}

// Bool registers a boolean parameter with a default value. The returned pointer
// points to its value.
func (inst *Constructor) Bool(name string, value bool, help string) *bool {
	p := new(bool)
	inst.BoolVar(p, name, value, help)
	return p
}

// BoolVar registers a boolean parameter with a default value. The parameter's
// value written to the location pointed to by ptr.
func (inst *Constructor) BoolVar(ptr *bool, name string, value bool, help string) {
	*ptr = value
	inst.define(name, help, func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*ptr = v
		return nil
	}, func() string { return strconv.FormatBool(*ptr) })
}

// Duration registers a duration parameter with a default value.
// Values are parsed by time.ParseDuration.
func (inst *Constructor) Duration(name string, value time.Duration, help string) *time.Duration {
	p := new(time.Duration)
	inst.DurationVar(p, name, value, help)
	return p
}

// DurationVar registers a duration parameter with a default value.
func (inst *Constructor) DurationVar(ptr *time.Duration, name string, value time.Duration, help string) {
	*ptr = value
	inst.define(name, help, func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*ptr = v
		return nil
	}, func() string { return ptr.String() })
}

func (inst *Constructor) define(name, help string, set func(string) error, get func() string) {
	if inst.params[name] != nil {
		panic("config: parameter " + name + " already defined")
	}
	inst.params[name] = &param{help: help, set: set, get: get}
}

func (inst *Constructor) set(name, value string) error {
	p := inst.params[name]
	if p == nil {
		return errors.E(errors.NotExist, fmt.Sprintf("config: instance %s has no parameter %s", inst.name, name))
	}
	if err := p.set(value); err != nil {
		return errors.E(errors.Invalid, fmt.Sprintf("config: %s.%s: invalid value %q", inst.name, name, value), err)
	}
	return nil
}

func (inst *Constructor) sortedParams() []string {
	names := make([]string, 0, len(inst.params))
	for name := range inst.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
