// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/lanis/crypto/atrest"
	"github.com/grailbio/lanis/crypto/rsakey"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/encoded"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/handshake/portaltest"
	"github.com/grailbio/lanis/session"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"

	_ "github.com/grailbio/lanis/security/keycrypt/file"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), strings.NewReader(stdin), &out, args)
	return out.String(), err
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCmd(t, "")
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = runCmd(t, "", "frobnicate")
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.HasSubstr(t, err.Error(), "frobnicate")
}

func TestKeygen(t *testing.T) {
	out, err := runCmd(t, "", "keygen", "-bits", "256")
	assert.NoError(t, err)
	kp, err := rsakey.ParsePrivateKeyPEM(out)
	assert.NoError(t, err)
	expect.EQ(t, kp.PrivateKey.N.BitLen(), 256)
	expect.True(t, strings.HasSuffix(out, kp.PublicKeyPEM))
	pub, err := rsakey.ParsePublicKeyPEM(out)
	assert.NoError(t, err)
	expect.True(t, pub.N.Cmp(kp.PrivateKey.N) == 0)

	out, err = runCmd(t, "", "keygen", "-public")
	assert.NoError(t, err)
	expect.True(t, strings.HasPrefix(out, "-----BEGIN PUBLIC KEY-----"))

	_, err = runCmd(t, "", "keygen", "-bits", "0")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestEncryptDecrypt(t *testing.T) {
	blob, err := runCmd(t, "Stundenplan", "encrypt", "-pass", "geheim")
	assert.NoError(t, err)
	out, err := runCmd(t, blob, "decrypt", "-pass", "geheim")
	assert.NoError(t, err)
	expect.EQ(t, out, "Stundenplan")

	out, err = runCmd(t, blob, "decrypt", "-pass", "geheim", "-unpadded")
	assert.NoError(t, err)
	expect.EQ(t, out, "Stundenplan"+strings.Repeat("\x05", 5))

	_, err = runCmd(t, blob, "decrypt", "-pass", "falsch")
	expect.True(t, errors.Is(errors.Decryption, err))
	_, err = runCmd(t, blob, "decrypt")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestEncryptWithSalt(t *testing.T) {
	out, err := runCmd(t, "hello", "encrypt", "-pass", "test-passphrase", "-salt", "0000000000000000")
	assert.NoError(t, err)
	want, err := salted.EncryptWithSalt([]byte("hello"), "test-passphrase", [8]byte{})
	assert.NoError(t, err)
	expect.EQ(t, out, want+"\n")

	_, err = runCmd(t, "hello", "encrypt", "-pass", "x", "-salt", "00")
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestDecryptText(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "pass")
	defer cleanup()
	passFile := filepath.Join(dir, "pass")
	assert.NoError(t, os.WriteFile(passFile, []byte("geheim"), 0600))

	blob, err := salted.Encrypt([]byte("\n  Mathematik \t"), "geheim")
	assert.NoError(t, err)
	out, err := runCmd(t, blob+"\n", "decrypt", "-text", "-pass", "@"+passFile)
	assert.NoError(t, err)
	expect.EQ(t, out, "Mathematik\n")
}

func TestDecode(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "decode")
	defer cleanup()
	var paths []string
	for _, text := range []string{"Deutsch", "Englisch"} {
		frag, err := encoded.Encode([]byte(text), "geheim")
		assert.NoError(t, err)
		path := filepath.Join(dir, text+".html")
		assert.NoError(t, os.WriteFile(path, []byte("<p>"+frag+"</p>\n"), 0600))
		paths = append(paths, path)
	}
	out, err := runCmd(t, "", append([]string{"decode", "-pass", "geheim"}, paths...)...)
	assert.NoError(t, err)
	expect.EQ(t, out, "<p>Deutsch</p>\n<p>Englisch</p>\n")

	frag, err := encoded.Encode([]byte("Sport"), "geheim")
	assert.NoError(t, err)
	out, err = runCmd(t, "<b>"+frag+"</b>", "decode", "-pass", "geheim")
	assert.NoError(t, err)
	expect.EQ(t, out, "<b>Sport</b>")

	_, err = runCmd(t, "", "decode", "-pass", "geheim", filepath.Join(dir, "missing.html"))
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestHandshake(t *testing.T) {
	portal := portaltest.New(t)
	out, err := runCmd(t, "", "handshake", "-ajax-url", portal.AjaxURL())
	assert.NoError(t, err)
	keys := portal.ClientKeys()
	assert.EQ(t, len(keys), 1)
	expect.True(t, strings.HasPrefix(out, "session "))
	expect.True(t, strings.HasSuffix(out, keys[0]))
}

func TestSecrets(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "secrets")
	defer cleanup()
	url := "file://" + filepath.Join(dir, "credentials")

	keyHex, err := runCmd(t, "", "secrets-key")
	assert.NoError(t, err)
	keyHex = strings.TrimSpace(keyHex)
	_, err = atrest.ParseKey(keyHex)
	assert.NoError(t, err)

	_, err = runCmd(t, "hunter2\nuntis\n", "secrets-put", "-key", keyHex,
		"-school", "5182", "-user", "max", "-untis-school", "gym", "-untis-user", "mmax", url)
	assert.NoError(t, err)

	out, err := runCmd(t, "", "secrets-get", "-key", keyHex, url)
	assert.NoError(t, err)
	var got session.Secrets
	assert.NoError(t, json.Unmarshal([]byte(out), &got))
	expect.EQ(t, got, session.Secrets{
		SchoolID: 5182,
		Username: "max",
		Password: "hunter2",
		Untis:    &session.UntisSecrets{SchoolName: "gym", Username: "mmax", Password: "untis"},
	})

	other, err := atrest.NewKey()
	assert.NoError(t, err)
	_, err = runCmd(t, "", "secrets-get", "-key", other.String(), url)
	expect.HasSubstr(t, err.Error(), session.ErrWrongKey)

	t.Setenv(keyEnv, "")
	_, err = runCmd(t, "", "secrets-get", url)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = runCmd(t, "", "secrets-put", "-key", keyHex, "-school", "1", "-user", "max", url)
	expect.True(t, errors.Is(errors.Invalid, err))
}
