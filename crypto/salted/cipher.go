// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package salted

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"strings"
	"unicode"

	"github.com/grailbio/lanis/crypto/evpkdf"
	"github.com/grailbio/lanis/errors"
)

// Random is the source of fresh salts.
var Random io.Reader = rand.Reader

// Padding selects how a decrypted plaintext is unpadded.
type Padding int

const (
	// PKCS7 removes and verifies PKCS#7 padding.
	PKCS7 Padding = iota
	// NoPadding returns the block-aligned plaintext as decrypted.
	NoPadding
)

func (p Padding) String() string {
	switch p {
	case PKCS7:
		return "pkcs7"
	case NoPadding:
		return "none"
	}
	return "unknown"
}

// Encrypt encrypts plaintext under passphrase with a fresh random
// salt and returns the blob text.
func Encrypt(plaintext []byte, passphrase string) (string, error) {
	var salt [evpkdf.SaltSize]byte
	if _, err := io.ReadFull(Random, salt[:]); err != nil {
		return "", errors.E(errors.Encryption, "generating salt", err)
	}
	return EncryptWithSalt(plaintext, passphrase, salt)
}

// EncryptWithSalt is Encrypt with a caller-provided salt.
func EncryptWithSalt(plaintext []byte, passphrase string, salt [evpkdf.SaltSize]byte) (string, error) {
	m := evpkdf.Derive([]byte(passphrase), salt[:])
	block, err := aes.NewCipher(m.Key[:])
	if err != nil {
		return "", errors.E(errors.Encryption, err)
	}
	ct := Pad(append([]byte(nil), plaintext...))
	cipher.NewCBCEncrypter(block, m.IV[:]).CryptBlocks(ct, ct)
	return Blob{Salt: salt, Ciphertext: ct}.Encode(), nil
}

// Decrypt decrypts blob text under passphrase and removes PKCS#7
// padding.
func Decrypt(blob, passphrase string) ([]byte, error) {
	return DecryptMode(blob, passphrase, PKCS7)
}

// DecryptUnpadded decrypts blob text under passphrase without
// removing any padding.
func DecryptUnpadded(blob, passphrase string) ([]byte, error) {
	return DecryptMode(blob, passphrase, NoPadding)
}

// DecryptMode decrypts blob text under passphrase using the given
// padding mode. Malformed blobs return errors of kind errors.Format;
// misaligned ciphertexts and bad padding return errors of kind
// errors.Decryption.
func DecryptMode(blob, passphrase string, padding Padding) ([]byte, error) {
	b, err := Decode(blob)
	if err != nil {
		return nil, err
	}
	if len(b.Ciphertext) == 0 || len(b.Ciphertext)%aes.BlockSize != 0 {
		return nil, errors.E(errors.Decryption, "ciphertext is not block aligned")
	}
	m := evpkdf.Derive([]byte(passphrase), b.Salt[:])
	block, err := aes.NewCipher(m.Key[:])
	if err != nil {
		return nil, errors.E(errors.Decryption, err)
	}
	pt := make([]byte, len(b.Ciphertext))
	cipher.NewCBCDecrypter(block, m.IV[:]).CryptBlocks(pt, b.Ciphertext)
	switch padding {
	case PKCS7:
		return Unpad(pt)
	case NoPadding:
		return pt, nil
	}
	return nil, errors.E(errors.Invalid, "unknown padding mode", padding.String())
}

// DecryptText decrypts blob text without removing padding and trims
// leading and trailing white space and control characters. Portal
// strings are padded with either PKCS#7 bytes, NULs or spaces, all of
// which the trim removes.
func DecryptText(blob, passphrase string) (string, error) {
	p, err := DecryptUnpadded(blob, passphrase)
	if err != nil {
		return "", err
	}
	return strings.TrimFunc(string(p), isPadding), nil
}

func isPadding(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
