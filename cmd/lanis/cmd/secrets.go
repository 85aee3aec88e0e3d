// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/lanis/crypto/atrest"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
	"github.com/grailbio/lanis/session"
	"golang.org/x/crypto/ssh/terminal"
)

// keyEnv names the environment variable that holds the hex-encoded
// credentials key when -key is not given.
const keyEnv = "LANIS_SECRETS_KEY"

// SecretsKey prints a new credentials key.
func SecretsKey(ctx context.Context, _ io.Reader, out io.Writer, args []string) error {
	if err := parseFlags(newFlagSet("secrets-key"), args); err != nil {
		return err
	}
	key, err := atrest.NewKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, key)
	return err
}

// SecretsPut stores encrypted account secrets.
func SecretsPut(ctx context.Context, in io.Reader, out io.Writer, args []string) error {
	var (
		flags         = newFlagSet("secrets-put")
		keyFlag       = flags.String("key", "", "hex-encoded key; defaults to $"+keyEnv)
		schoolFlag    = flags.Int("school", 0, "the portal's school ID")
		userFlag      = flags.String("user", "", "portal user name")
		untisFlag     = flags.String("untis-school", "", "Untis school name; Untis credentials are stored if set")
		untisUserFlag = flags.String("untis-user", "", "Untis user name")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	secret, key, err := secretAndKey(flags.Args(), *keyFlag)
	if err != nil {
		return err
	}
	if *schoolFlag <= 0 || *userFlag == "" {
		return errors.E(errors.Invalid, "secrets-put: -school and -user are required")
	}
	var (
		r       = bufio.NewReader(in)
		secrets = session.Secrets{SchoolID: *schoolFlag, Username: *userFlag}
	)
	if secrets.Password, err = readPassword(in, r, "Portal password: "); err != nil {
		return err
	}
	if *untisFlag != "" {
		secrets.Untis = &session.UntisSecrets{SchoolName: *untisFlag, Username: *untisUserFlag}
		if secrets.Untis.Password, err = readPassword(in, r, "Untis password: "); err != nil {
			return err
		}
	}
	return session.SaveSecrets(secret, secrets, key)
}

// SecretsGet prints stored account secrets.
func SecretsGet(ctx context.Context, _ io.Reader, out io.Writer, args []string) error {
	var (
		flags   = newFlagSet("secrets-get")
		keyFlag = flags.String("key", "", "hex-encoded key; defaults to $"+keyEnv)
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	secret, key, err := secretAndKey(flags.Args(), *keyFlag)
	if err != nil {
		return err
	}
	secrets, err := session.LoadSecrets(secret, key)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(secrets)
}

func secretAndKey(args []string, keyHex string) (keycrypt.Secret, atrest.Key, error) {
	if len(args) != 1 {
		return nil, atrest.Key{}, errors.E(errors.Invalid, "exactly one keycrypt URL expected")
	}
	if keyHex == "" {
		keyHex = os.Getenv(keyEnv)
	}
	if keyHex == "" {
		return nil, atrest.Key{}, errors.E(errors.Invalid, "missing -key and $"+keyEnv)
	}
	key, err := atrest.ParseKey(keyHex)
	if err != nil {
		return nil, atrest.Key{}, err
	}
	secret, err := keycrypt.Lookup(args[0])
	if errors.Is(errors.NotExist, err) {
		return nil, atrest.Key{}, errors.E(err, "(registered schemes: "+strings.Join(keycrypt.Schemes(), ", ")+")")
	}
	if err != nil {
		return nil, atrest.Key{}, err
	}
	return secret, key, nil
}

// readPassword reads a password from the terminal if in is one, and
// otherwise reads the next line of r.
func readPassword(in io.Reader, r *bufio.Reader, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && terminal.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := terminal.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", errors.E("reading password", err)
		}
		return string(b), nil
	}
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.E(errors.Invalid, "reading password", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
