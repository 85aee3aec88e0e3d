// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/lanis/encoded"
	"github.com/grailbio/lanis/errors"
	"golang.org/x/sync/errgroup"
)

// Decode decrypts the encoded fragments of documents.
func Decode(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	var (
		flags    = newFlagSet("decode")
		passFlag = flags.String("pass", "", "passphrase, or @file to read it from a file")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	pass, err := passphrase(*passFlag)
	if err != nil {
		return err
	}
	var docs []string
	if paths := flags.Args(); len(paths) == 0 {
		b, err := io.ReadAll(in)
		if err != nil {
			return errors.E("reading document", err)
		}
		docs = []string{string(b)}
	} else {
		docs = make([]string, len(paths))
		g, _ := errgroup.WithContext(ctx)
		for i, path := range paths {
			i, path := i, path
			g.Go(func() error {
				b, err := os.ReadFile(path)
				if err != nil {
					return errors.E("reading document", path, err)
				}
				docs[i] = string(b)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	for _, doc := range encoded.NewDecoder(pass).DecodeAll(docs) {
		if _, err := io.WriteString(out, doc); err != nil {
			return err
		}
	}
	return nil
}
