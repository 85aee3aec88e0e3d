// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/lanis/crypto/evpkdf"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/errors"
)

// Encrypt encrypts stdin into a salted blob.
func Encrypt(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	var (
		flags    = newFlagSet("encrypt")
		passFlag = flags.String("pass", "", "passphrase, or @file to read it from a file")
		saltFlag = flags.String("salt", "", "hex-encoded 8-byte salt; random if empty")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	pass, err := passphrase(*passFlag)
	if err != nil {
		return err
	}
	plaintext, err := io.ReadAll(in)
	if err != nil {
		return errors.E("reading plaintext", err)
	}
	var blob string
	if *saltFlag == "" {
		blob, err = salted.Encrypt(plaintext, pass)
	} else {
		var salt [evpkdf.SaltSize]byte
		b, herr := hex.DecodeString(*saltFlag)
		if herr != nil || len(b) != len(salt) {
			return errors.E(errors.Invalid, "-salt must be 8 hex-encoded bytes")
		}
		copy(salt[:], b)
		blob, err = salted.EncryptWithSalt(plaintext, pass, salt)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, blob)
	return err
}

// Decrypt decrypts a salted blob read from stdin.
func Decrypt(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	var (
		flags        = newFlagSet("decrypt")
		passFlag     = flags.String("pass", "", "passphrase, or @file to read it from a file")
		unpaddedFlag = flags.Bool("unpadded", false, "keep the final block's padding")
		textFlag     = flags.Bool("text", false, "trim white space and padding from the plaintext")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	pass, err := passphrase(*passFlag)
	if err != nil {
		return err
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return errors.E("reading blob", err)
	}
	blob := strings.TrimSpace(string(b))
	switch {
	case *textFlag:
		text, err := salted.DecryptText(blob, pass)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, text)
		return err
	case *unpaddedFlag:
		b, err = salted.DecryptUnpadded(blob, pass)
	default:
		b, err = salted.Decrypt(blob, pass)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}
