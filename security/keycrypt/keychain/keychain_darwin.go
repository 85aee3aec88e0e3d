// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

//go:build darwin && cgo
// +build darwin,cgo

package keychain

import (
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/security/keycrypt"
	keychain "github.com/keybase/go-keychain"
)

const prefix = "com.grail.lanis."

func init() {
	keycrypt.RegisterFunc("keychain", func(h string) keycrypt.Keycrypt {
		return &Keychain{Namespace: h}
	})
}

var _ keycrypt.Keycrypt = (*Keychain)(nil)

// Keychain is a keycrypt backed by the login keychain.
type Keychain struct {
	Namespace string
}

// Lookup implements keycrypt.Keycrypt.
func (k *Keychain) Lookup(name string) keycrypt.Secret {
	return &secret{service: prefix + k.Namespace, account: name}
}

type secret struct {
	service, account string
}

func (s *secret) Get() ([]byte, error) {
	data, err := keychain.GetGenericPassword(s.service, s.account, "", "")
	switch {
	case err == keychain.ErrorItemNotFound:
		return nil, keycrypt.ErrNoSuchSecret
	case err != nil:
		return nil, errors.E("keychain", s.service, s.account, err)
	case data == nil:
		return nil, keycrypt.ErrNoSuchSecret
	}
	return data, nil
}

func (s *secret) Put(p []byte) error {
	// The item is replaced rather than updated so that its access
	// attributes are always the ones below.
	_ = keychain.DeleteGenericPasswordItem(s.service, s.account)
	item := keychain.NewGenericPassword(s.service, s.account, "", p, "")
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)
	if err := keychain.AddItem(item); err != nil {
		return errors.E("keychain", s.service, s.account, err)
	}
	return nil
}
