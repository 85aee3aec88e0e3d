// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/lanis/errors"
)

type command struct {
	name     string
	callback func(ctx context.Context, in io.Reader, out io.Writer, args []string) error
	help     string
}

var commands []command

func init() {
	commands = []command{
		{"keygen", Keygen, `Keygen prints a new RSA key pair as PEM. The public key is the passphrase of a session.`},
		{"handshake", Handshake, `Handshake establishes a session with the portal and prints its passphrase and token.
Session options are read from the "lanis/session" profile instance.`},
		{"encrypt", Encrypt, `Encrypt reads stdin and prints it as a base64 "Salted__" blob under -pass.`},
		{"decrypt", Decrypt, `Decrypt reads a base64 "Salted__" blob from stdin and prints the plaintext.`},
		{"decode", Decode, `Decode decrypts the <encoded> fragments of the given HTML files, or of stdin if no
files are given, and prints the decoded documents in order.`},
		{"secrets-key", SecretsKey, `Secrets-key prints a new hex-encoded key for stored credentials.`},
		{"secrets-put", SecretsPut, `Secrets-put encrypts portal credentials and stores them at a keycrypt URL,
for example localfile://lanis/credentials. Passwords are read from the terminal or,
one per line, from stdin.`},
		{"secrets-get", SecretsGet, `Secrets-get prints the credentials stored at a keycrypt URL as JSON.`},
	}
}

// PrintHelp prints the list of subcommands to stderr.
func PrintHelp() {
	fmt.Fprintln(os.Stderr, "Subcommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "%s: %s\n", c.name, c.help)
	}
}

// Run runs the subcommand named by args[0] with standard input and
// output.
func Run(ctx context.Context, args []string) error {
	return run(ctx, os.Stdin, os.Stdout, args)
}

func run(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	if len(args) == 0 {
		PrintHelp()
		return errors.E(errors.Invalid, "no subcommand given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.callback(ctx, in, out, args[1:])
		}
	}
	PrintHelp()
	return errors.E(errors.Invalid, "unknown command", args[0])
}

func newFlagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	return flags
}

func parseFlags(flags *flag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return errors.E(errors.Invalid, flags.Name(), err)
	}
	return nil
}

// passphrase returns the passphrase given by -pass or, if it names a
// file with a leading '@', the contents of that file.
func passphrase(flag string) (string, error) {
	if flag == "" {
		return "", errors.E(errors.Invalid, "missing -pass")
	}
	if !strings.HasPrefix(flag, "@") {
		return flag, nil
	}
	b, err := os.ReadFile(flag[1:])
	if err != nil {
		return "", errors.E("reading passphrase", flag[1:], err)
	}
	return string(b), nil
}
