// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package salted implements the OpenSSL-compatible salted blob used
// by the portal for encrypted payloads: the ASCII magic "Salted__",
// an 8-byte salt and an AES-256-CBC ciphertext, base64 encoded as a
// whole. Keys and IVs are derived from a passphrase with evpkdf.
package salted

import (
	"bytes"
	"encoding/base64"

	"github.com/grailbio/lanis/crypto/evpkdf"
	"github.com/grailbio/lanis/errors"
)

// Magic is the literal that prefixes every decoded blob.
const Magic = "Salted__"

const headerSize = len(Magic) + evpkdf.SaltSize

// ErrNotSalted is the cause of Format errors for blobs that do not
// begin with Magic followed by a salt.
var ErrNotSalted = errors.New("blob is not salted")

var encoding = base64.StdEncoding.Strict()

// Blob is a decoded salted blob.
type Blob struct {
	Salt       [evpkdf.SaltSize]byte
	Ciphertext []byte
}

// Encode returns the base64 text of Magic ‖ salt ‖ ciphertext.
func (b Blob) Encode() string {
	p := make([]byte, 0, headerSize+len(b.Ciphertext))
	p = append(p, Magic...)
	p = append(p, b.Salt[:]...)
	p = append(p, b.Ciphertext...)
	return encoding.EncodeToString(p)
}

// Decode parses blob text. Text that is not valid base64, or that does
// not carry the salted header, yields an error of kind errors.Format.
func Decode(text string) (Blob, error) {
	p, err := encoding.DecodeString(text)
	if err != nil {
		return Blob{}, errors.E(errors.Format, "base64", err)
	}
	if len(p) < headerSize || !bytes.Equal(p[:len(Magic)], []byte(Magic)) {
		return Blob{}, errors.E(errors.Format, ErrNotSalted)
	}
	var b Blob
	copy(b.Salt[:], p[len(Magic):headerSize])
	b.Ciphertext = p[headerSize:]
	return b, nil
}
