// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package salted

import (
	"bytes"
	"crypto/aes"

	"github.com/grailbio/lanis/errors"
)

// Pad appends PKCS#7 padding to b for the AES block size. A full
// block of padding is added when len(b) is already aligned.
func Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad removes and checks PKCS#7 padding from b.
func Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, errors.E(errors.Decryption, "padded data is not block aligned")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, errors.E(errors.Decryption, "bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.E(errors.Decryption, "bad padding")
		}
	}
	return b[:len(b)-n], nil
}
