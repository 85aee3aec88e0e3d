// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package rsakey generates the RSA key pairs that identify a portal
// session and performs the PKCS#1 v1.5 encryption used to hand a
// public key to the portal.
//
// The portal expects the client's PEM-encoded public key to fit in a
// single PKCS#1 v1.5 block under the server's key, which bounds the
// client's modulus. DefaultBits is the size used by the portal's own
// script.
package rsakey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"io"

	"github.com/grailbio/lanis/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultBits is the default modulus size of a session key pair.
const DefaultBits = 128

// Random is the entropy source for key generation and encryption.
var Random io.Reader = rand.Reader

var (
	// GenerateCounter counts the key pairs made by Generate.
	GenerateCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanis_rsa_generate_op",
		Help: "Total number of session key pairs generated.",
	})

	// EncryptCounter counts successful EncryptPKCS1v15 calls.
	EncryptCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanis_rsa_encrypt_op",
		Help: "Total number of rsa encryption ops.",
	})
)

// KeyPair is a session key pair together with its PEM encodings. A
// KeyPair is not modified after it is created; WithToken returns a
// copy.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	// PrivateKeyPEM is the PKCS#8 "PRIVATE KEY" encoding of PrivateKey.
	PrivateKeyPEM string
	// PublicKeyPEM is the PKIX "PUBLIC KEY" encoding of PublicKey. It
	// is also the passphrase of all symmetric operations in a session.
	PublicKeyPEM string
	// AcceptedToken is the encrypted public key that the portal
	// accepted during the handshake. It is empty until then.
	AcceptedToken string
}

// Generate creates a key pair with a modulus of the given size.
func Generate(bits int) (*KeyPair, error) {
	if bits <= 0 {
		return nil, errors.E(errors.Invalid, "rsakey.Generate: invalid modulus size")
	}
	key, err := rsa.GenerateKey(Random, bits)
	if err != nil {
		return nil, errors.E(errors.Encryption, "generating rsa key", err)
	}
	GenerateCounter.Inc()
	return fromPrivateKey(key)
}

func fromPrivateKey(key *rsa.PrivateKey) (*KeyPair, error) {
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.E(errors.Format, "encoding private key", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, errors.E(errors.Format, "encoding public key", err)
	}
	return &KeyPair{
		PrivateKey:    key,
		PublicKey:     &key.PublicKey,
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: priv})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})),
	}, nil
}

// WithToken returns a copy of kp that carries the accepted token.
func (kp *KeyPair) WithToken(token string) *KeyPair {
	c := *kp
	c.AcceptedToken = token
	return &c
}

// ParsePrivateKeyPEM restores a key pair from a PKCS#8 or PKCS#1
// private key.
func ParsePrivateKeyPEM(text string) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, errors.E(errors.Format, "no pem block in private key")
	}
	var key *rsa.PrivateKey
	switch block.Type {
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.E(errors.Format, "parsing private key", err)
		}
		var ok bool
		if key, ok = k.(*rsa.PrivateKey); !ok {
			return nil, errors.E(errors.Format, "private key is not rsa")
		}
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, errors.E(errors.Format, "parsing private key", err)
		}
		key = k
	default:
		return nil, errors.E(errors.Format, "unexpected pem block", block.Type)
	}
	return fromPrivateKey(key)
}

// ParsePublicKeyPEM parses the first public key in text. Both PKIX
// ("PUBLIC KEY") and PKCS#1 ("RSA PUBLIC KEY") blocks are accepted;
// other blocks are skipped.
func ParsePublicKeyPEM(text string) (*rsa.PublicKey, error) {
	rest := []byte(text)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.E(errors.Format, "no public key found in pem data")
		}
		switch block.Type {
		case "PUBLIC KEY":
			k, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, errors.E(errors.Format, "parsing public key", err)
			}
			pub, ok := k.(*rsa.PublicKey)
			if !ok {
				return nil, errors.E(errors.Format, "public key is not rsa")
			}
			return pub, nil
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, errors.E(errors.Format, "parsing public key", err)
			}
			return pub, nil
		}
	}
}

// EncryptPKCS1v15 encrypts msg under pub with PKCS#1 v1.5 padding and
// returns the base64 ciphertext. Messages longer than the key size
// minus 11 bytes fail with kind errors.Encryption.
func EncryptPKCS1v15(pub *rsa.PublicKey, msg []byte) (string, error) {
	ct, err := rsa.EncryptPKCS1v15(Random, pub, msg)
	if err != nil {
		return "", errors.E(errors.Encryption, "rsa encrypt", err)
	}
	EncryptCounter.Inc()
	return base64.StdEncoding.EncodeToString(ct), nil
}
