// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"os"
	"strings"

	"github.com/grailbio/lanis/errors"
)

// pathsFlag collects the values of a repeated -profile flag.
type pathsFlag struct {
	def   string
	paths *[]string
}

func (f pathsFlag) String() string { return f.def }

func (f pathsFlag) Set(path string) error {
	*f.paths = append(*f.paths, path)
	return nil
}

// setFlag collects the key=value pairs of a repeated -set flag.
type setFlag struct{ params *[][2]string }

func (setFlag) String() string { return "" }

func (f setFlag) Set(kv string) error {
	i := strings.IndexByte(kv, '=')
	if i < 0 {
		return errors.E(errors.Invalid, "-set", kv+": missing '='")
	}
	*f.params = append(*f.params, [2]string{kv[:i], kv[i+1:]})
	return nil
}

// RegisterFlags registers the profile's flags, named with the given
// prefix, on fs. ProcessFlags applies them after fs is parsed:
//
//	-profile path
//		Load the profile at path. May be repeated; profiles are loaded
//		in order. Without -profile, defaultProfilePath is loaded if it
//		exists.
//	-set path=value
//		Set a parameter as by Profile.Set. May be repeated.
//	-profiledump
//		Print the resulting profile to stderr and exit.
func (p *Profile) RegisterFlags(fs *flag.FlagSet, prefix string, defaultProfilePath string) {
	p.flagDefaultPath = defaultProfilePath
	fs.Var(pathsFlag{defaultProfilePath, &p.flagPaths}, prefix+"profile", "load the profile at `path`; may be repeated")
	fs.Var(setFlag{&p.flagParams}, prefix+"set", "set a profile parameter as `path=value`; may be repeated")
	fs.BoolVar(&p.flagDump, prefix+"profiledump", false, "print the profile to stderr and exit")
}

// ProcessFlags loads the profiles and parameters given by the flags
// registered with RegisterFlags. A missing default profile is
// skipped; every other failure is returned.
func (p *Profile) ProcessFlags() error {
	paths := p.flagPaths
	if len(paths) == 0 && p.flagDefaultPath != "" {
		switch _, err := os.Stat(p.flagDefaultPath); {
		case err == nil:
			paths = []string{p.flagDefaultPath}
		case !os.IsNotExist(err):
			return errors.E("loading profile", err)
		}
	}
	for _, path := range paths {
		if err := p.parseFile(path); err != nil {
			return err
		}
	}
	for _, kv := range p.flagParams {
		if err := p.Set(kv[0], kv[1]); err != nil {
			return err
		}
	}
	if p.flagDump {
		if err := p.PrintTo(os.Stderr); err != nil {
			return err
		}
		os.Exit(0)
	}
	return nil
}

func (p *Profile) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.E("loading profile", err)
	}
	defer f.Close()
	if err := p.Parse(f); err != nil {
		return errors.E("loading profile", path, err)
	}
	return nil
}

// RegisterFlags registers the application profile's flags on
// flag.CommandLine.
func RegisterFlags(prefix string, defaultProfilePath string) {
	Application().RegisterFlags(flag.CommandLine, prefix, defaultProfilePath)
}

// ProcessFlags applies the application profile's flags.
func ProcessFlags() error { return Application().ProcessFlags() }
