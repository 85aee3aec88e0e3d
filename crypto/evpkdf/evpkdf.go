// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package evpkdf implements OpenSSL's EVP_BytesToKey key derivation
// with the MD5 digest and a single iteration. This is the derivation
// the portal's browser script uses for every salted blob; the digest
// and iteration count are fixed by that counterpart.
package evpkdf

import "crypto/md5"

const (
	// KeySize is the size of a derived AES-256 key.
	KeySize = 32
	// IVSize is the size of a derived CBC initialization vector.
	IVSize = 16
	// SaltSize is the size of the salt carried in a salted blob.
	SaltSize = 8
)

// Material is the key and IV derived from a passphrase and a salt.
type Material struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// Derive returns the key material for the given passphrase and salt.
// It is deterministic and defined for all inputs.
func Derive(passphrase, salt []byte) Material {
	var m Material
	b := Bytes(passphrase, salt, KeySize+IVSize)
	copy(m.Key[:], b[:KeySize])
	copy(m.IV[:], b[KeySize:])
	return m
}

// Bytes returns the first n bytes of the derivation stream
// D_1 ‖ D_2 ‖ ..., where D_i = MD5(D_{i-1} ‖ passphrase ‖ salt) and
// D_0 is empty.
func Bytes(passphrase, salt []byte, n int) []byte {
	var (
		out  = make([]byte, 0, n+md5.Size)
		prev []byte
	)
	for len(out) < n {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:n]
}
