// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/lanis/errors"
)

// Profile stores parameter values and configures instances with
// them. Most users should use the package-level functions, which
// operate on the application profile.
type Profile struct {
	// The following are used by the flag registration and
	// handling mechanism.
	flagDefaultPath string
	flagPaths       []string
	flagParams      [][2]string
	flagDump        bool

	mu     sync.Mutex
	values map[string]map[string]string
}

// New returns an empty profile: every instance takes its default
// parameter values.
func New() *Profile {
	return &Profile{values: make(map[string]map[string]string)}
}

func splitPath(path string) (inst, param string, err error) {
	i := strings.LastIndexByte(path, '.')
	if i <= 0 || i == len(path)-1 {
		return "", "", errors.E(errors.Invalid, fmt.Sprintf("config: invalid parameter path %q", path))
	}
	return path[:i], path[i+1:], nil
}

// Set sets the parameter at path, of the form "instance.param", to
// value. The value is interpreted according to the parameter's type;
// Set fails if the instance or the parameter does not exist or if the
// value does not parse.
func (p *Profile) Set(path string, value string) error {
	name, param, err := splitPath(path)
	if err != nil {
		return err
	}
	inst, err := configure(name)
	if err != nil {
		return err
	}
	if err := inst.set(param, value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.values[name] == nil {
		p.values[name] = make(map[string]string)
	}
	p.values[name][param] = value
	return nil
}

// Get returns the value of the parameter at path: the value set in
// the profile, or else the parameter's default.
func (p *Profile) Get(path string) (value string, ok bool) {
	name, param, err := splitPath(path)
	if err != nil {
		return "", false
	}
	p.mu.Lock()
	value, ok = p.values[name][param]
	p.mu.Unlock()
	if ok {
		return value, true
	}
	inst, err := configure(name)
	if err != nil {
		return "", false
	}
	if prm := inst.params[param]; prm != nil {
		return prm.get(), true
	}
	return "", false
}

// Merge sets every value of q in p.
func (p *Profile) Merge(q *Profile) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, params := range q.values {
		if p.values[name] == nil {
			p.values[name] = make(map[string]string)
		}
		for k, v := range params {
			p.values[name][k] = v
		}
	}
}

// Parse parses profile text from r and sets its values in p. Parse
// stops at the first invalid statement or value.
func (p *Profile) Parse(r io.Reader) error {
	stmts, err := parse(r)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if err := p.Set(s.instance+"."+s.param, s.value); err != nil {
			return errors.E(s.pos.String(), err)
		}
	}
	return nil
}

// Instance constructs the named instance with the profile's values
// and assigns it to the value pointed to by ptr. The instance's type
// must be assignable to *ptr.
func (p *Profile) Instance(name string, ptr interface{}) error {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.E(errors.Invalid, "config.Instance: non-pointer or nil value")
	}
	inst, err := configure(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	values := make(map[string]string, len(p.values[name]))
	for k, v := range p.values[name] {
		values[k] = v
	}
	p.mu.Unlock()
	for k, v := range values {
		if err := inst.set(k, v); err != nil {
			return err
		}
	}
	x, err := inst.New()
	if err != nil {
		return errors.E("config: instance", name, err)
	}
	xv := reflect.ValueOf(x)
	if !xv.IsValid() || !xv.Type().AssignableTo(v.Elem().Type()) {
		return errors.E(errors.Invalid, fmt.Sprintf("config: %s: instance type %T not assignable to provided type %s", name, x, v.Type()))
	}
	v.Elem().Set(xv)
	return nil
}

// PrintTo writes the profile, including the default values of every
// registered instance, to w in profile syntax.
func (p *Profile) PrintTo(w io.Writer) error {
	globalsMu.Lock()
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	globalsMu.Unlock()
	sort.Strings(names)
	for _, name := range names {
		inst, err := configure(name)
		if err != nil {
			return err
		}
		p.mu.Lock()
		for k, v := range p.values[name] {
			_ = inst.set(k, v)
		}
		p.mu.Unlock()
		if inst.Doc != "" {
			if _, err := fmt.Fprintf(w, "// %s\n", inst.Doc); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "param %s (\n", name); err != nil {
			return err
		}
		for _, k := range inst.sortedParams() {
			prm := inst.params[k]
			if _, err := fmt.Fprintf(w, "\t%s = %s // %s\n", k, strconv.Quote(prm.get()), prm.help); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, ")"); err != nil {
			return err
		}
	}
	return nil
}

var (
	appOnce sync.Once
	app     *Profile
)

// Application returns the application profile.
func Application() *Profile {
	appOnce.Do(func() { app = New() })
	return app
}

// Parse parses profile text into the application profile.
func Parse(r io.Reader) error {
	return Application().Parse(r)
}

// Instance constructs the named instance from the application
// profile.
func Instance(name string, ptr interface{}) error {
	return Application().Instance(name, ptr)
}

// Set sets a parameter in the application profile.
func Set(path, value string) error {
	return Application().Set(path, value)
}

// Get returns a parameter value from the application profile.
func Get(path string) (value string, ok bool) {
	return Application().Get(path)
}
