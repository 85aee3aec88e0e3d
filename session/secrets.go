// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package session

import (
	"github.com/grailbio/lanis/crypto/atrest"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
)

// ErrWrongKey is the message of errors from decrypting secrets that
// were stored under another key or were corrupted.
const ErrWrongKey = "wrong key or corrupted data"

// Secrets are the credentials of a portal account.
type Secrets struct {
	SchoolID int           `json:"school_id"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Untis    *UntisSecrets `json:"untis_secrets"`
}

// UntisSecrets are the credentials of the account's timetable
// service, if it has one.
type UntisSecrets struct {
	SchoolName string `json:"school_name"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// Encrypt encrypts s for storage under key.
func (s Secrets) Encrypt(key atrest.Key) ([]byte, error) {
	return atrest.Encrypt(s, key)
}

// SecretsFromEncrypted decrypts secrets encrypted by Secrets.Encrypt.
func SecretsFromEncrypted(data []byte, key atrest.Key) (Secrets, error) {
	var s Secrets
	if err := atrest.Decrypt(data, key, &s); err != nil {
		return Secrets{}, errors.E(ErrWrongKey, err)
	}
	return s, nil
}

// SaveSecrets encrypts secrets under key and stores them in s.
func SaveSecrets(s keycrypt.Secret, secrets Secrets, key atrest.Key) error {
	if err := atrest.Put(s, secrets, key); err != nil {
		return errors.E("saving secrets", err)
	}
	return nil
}

// LoadSecrets reads and decrypts the secrets stored in s.
func LoadSecrets(s keycrypt.Secret, key atrest.Key) (Secrets, error) {
	b, err := s.Get()
	if err != nil {
		return Secrets{}, errors.E("loading secrets", err)
	}
	return SecretsFromEncrypted(b, key)
}
