// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package atrest encrypts application values for local storage.
// Values are encoded as JSON and encrypted with AES-256-CBC and
// PKCS#7 padding under a caller-held key and an all-zero IV. The
// output is raw ciphertext with no header or salt, so identical
// values under the same key encrypt identically.
package atrest

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"reflect"

	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
)

// KeySize is the size of an at-rest key.
const KeySize = 32

// Key is an AES-256 key for at-rest values.
type Key [KeySize]byte

var zeroIV [aes.BlockSize]byte

// NewKey returns a random key.
func NewKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return Key{}, errors.E("generating key", err)
	}
	return k, nil
}

// ParseKey parses a hex-encoded key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, errors.E(errors.Format, "parsing key", err)
	}
	if len(b) != KeySize {
		return Key{}, errors.E(errors.Format, "parsing key: want 32 bytes")
	}
	copy(k[:], b)
	return k, nil
}

// String returns the hex encoding of k.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Encrypt encodes v as JSON and encrypts it under key.
func Encrypt(v interface{}, key Key) ([]byte, error) {
	p, err := json.Marshal(v)
	if err != nil {
		return nil, errors.E(errors.Serialization, err)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.E(errors.Encryption, err)
	}
	ct := salted.Pad(p)
	cipher.NewCBCEncrypter(block, zeroIV[:]).CryptBlocks(ct, ct)
	return ct, nil
}

// Decrypt decrypts data under key and decodes the JSON plaintext into
// v. Length and padding failures have kind errors.Decryption; a
// plaintext that does not decode into v has kind
// errors.Deserialization. On success the decoded value replaces *v;
// on error v is left untouched.
func Decrypt(data []byte, key Key, v interface{}) error {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return errors.E(errors.Decryption, "ciphertext is not block aligned")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return errors.E(errors.Decryption, err)
	}
	pt := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, zeroIV[:]).CryptBlocks(pt, data)
	if pt, err = salted.Unpad(pt); err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.E(errors.Invalid, "atrest.Decrypt: non-pointer or nil value")
	}
	// Decode into a fresh value so that v is only written on success.
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(pt, fresh.Interface()); err != nil {
		return errors.E(errors.Deserialization, err)
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// Put encrypts v under key and writes it to s.
func Put(s keycrypt.Secret, v interface{}, key Key) error {
	b, err := Encrypt(v, key)
	if err != nil {
		return err
	}
	return s.Put(b)
}

// Get reads s and decrypts it into v.
func Get(s keycrypt.Secret, key Key, v interface{}) error {
	b, err := s.Get()
	if err != nil {
		return err
	}
	return Decrypt(b, key, v)
}
