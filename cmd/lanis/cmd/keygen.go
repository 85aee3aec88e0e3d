// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/lanis/crypto/rsakey"
)

// Keygen generates a session key pair.
func Keygen(ctx context.Context, _ io.Reader, out io.Writer, args []string) error {
	var (
		flags      = newFlagSet("keygen")
		bitsFlag   = flags.Int("bits", rsakey.DefaultBits, "modulus size in bits")
		publicFlag = flags.Bool("public", false, "print only the public key")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	kp, err := rsakey.Generate(*bitsFlag)
	if err != nil {
		return err
	}
	if !*publicFlag {
		if _, err := fmt.Fprint(out, kp.PrivateKeyPEM); err != nil {
			return err
		}
	}
	_, err = fmt.Fprint(out, kp.PublicKeyPEM)
	return err
}
