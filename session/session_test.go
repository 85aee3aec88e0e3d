// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/lanis/config"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/encoded"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/handshake/portaltest"
	"github.com/grailbio/lanis/retry"
	"github.com/grailbio/lanis/session"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func init() {
	session.RetryPolicy = retry.Backoff(time.Millisecond, time.Millisecond, 1)
}

func options(portal *portaltest.Portal) session.Options {
	opts := session.DefaultOptions()
	opts.AjaxURL = portal.AjaxURL()
	return opts
}

func TestNew(t *testing.T) {
	portal := portaltest.New(t)
	s, err := session.New(context.Background(), options(portal))
	assert.NoError(t, err)

	_, err = uuid.Parse(s.ID())
	expect.NoError(t, err)
	expect.EQ(t, s.Passphrase(), s.KeyPair().PublicKeyPEM)
	expect.True(t, s.KeyPair().AcceptedToken != "")
	expect.EQ(t, portal.ClientKeys(), []string{s.Passphrase()})
	expect.True(t, s.HTTPClient().Jar != nil)

	blob, err := s.Encrypt([]byte("Hausaufgaben"))
	assert.NoError(t, err)
	p, err := s.Decrypt(blob)
	assert.NoError(t, err)
	expect.EQ(t, string(p), "Hausaufgaben")

	blob, err = salted.Encrypt([]byte("  Vertretungsplan\n"), s.Passphrase())
	assert.NoError(t, err)
	text, err := s.DecryptString(blob)
	assert.NoError(t, err)
	expect.EQ(t, text, "Vertretungsplan")

	frag, err := encoded.Encode([]byte("Raum 204"), s.Passphrase())
	assert.NoError(t, err)
	expect.EQ(t, s.DecodeDocument("<td>"+frag+"</td>"), "<td>Raum 204</td>")
	expect.EQ(t, s.Decoder().Decode(frag), "Raum 204")
}

func TestNewRetriesWithFreshKeys(t *testing.T) {
	portal := portaltest.New(t)
	var calls int32
	portal.SetChallenger(func(clientPEM string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return salted.Encrypt([]byte("garbage"), clientPEM)
		}
		return portaltest.Echo(clientPEM)
	})
	s, err := session.New(context.Background(), options(portal))
	assert.NoError(t, err)
	keys := portal.ClientKeys()
	assert.EQ(t, len(keys), 3)
	expect.True(t, keys[0] != keys[1] && keys[1] != keys[2])
	expect.EQ(t, s.Passphrase(), keys[2])
}

func TestNewGivesUp(t *testing.T) {
	portal := portaltest.New(t)
	portal.SetChallenger(func(clientPEM string) (string, error) {
		return salted.Encrypt([]byte("garbage"), clientPEM)
	})
	opts := options(portal)
	opts.HandshakeTries = 2
	_, err := session.New(context.Background(), opts)
	expect.True(t, errors.Is(errors.HandshakeFailed, err))
	expect.HasSubstr(t, err.Error(), session.ErrMessage)
	expect.EQ(t, len(portal.ClientKeys()), 2)
}

func TestNewNetworkFailure(t *testing.T) {
	portal := portaltest.New(t)
	portal.Fail(http.StatusBadGateway, "")
	_, err := session.New(context.Background(), options(portal))
	expect.True(t, errors.Is(errors.Net, err))
	expect.HasSubstr(t, err.Error(), session.ErrMessage)
	// Network failures are not retried.
	expect.EQ(t, len(portal.Requests()), 1)
}

func TestNewCanceled(t *testing.T) {
	portal := portaltest.New(t)
	portal.SetChallenger(func(clientPEM string) (string, error) {
		return salted.Encrypt([]byte("garbage"), clientPEM)
	})
	saved := session.RetryPolicy
	session.RetryPolicy = retry.Backoff(time.Hour, time.Hour, 1)
	defer func() { session.RetryPolicy = saved }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := session.New(ctx, options(portal))
	expect.True(t, errors.Is(errors.Timeout, err))
	expect.EQ(t, len(portal.ClientKeys()), 1)
}

func TestNewInvalidOptions(t *testing.T) {
	for _, opts := range []session.Options{{}, {KeyBits: 128}, {HandshakeTries: 1}} {
		_, err := session.New(context.Background(), opts)
		expect.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestConfig(t *testing.T) {
	p := config.New()
	var opts session.Options
	assert.NoError(t, p.Instance("lanis/session", &opts))
	expect.EQ(t, opts, session.DefaultOptions())

	assert.NoError(t, p.Parse(strings.NewReader(`
param lanis/session (
	ajax-url = "http://localhost/ajax.php"
	key-bits = 160
	handshake-tries = 5
	timeout = "5s"
)`)))
	assert.NoError(t, p.Instance("lanis/session", &opts))
	expect.EQ(t, opts.AjaxURL, "http://localhost/ajax.php")
	expect.EQ(t, opts.KeyBits, 160)
	expect.EQ(t, opts.HandshakeTries, 5)
	expect.EQ(t, opts.Timeout, 5*time.Second)
}

func TestHTTPClient(t *testing.T) {
	var sawCookie int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "42", Path: "/"})
			http.Redirect(w, r, "/start", http.StatusFound)
		case "/start":
			if c, err := r.Cookie("sid"); err == nil && c.Value == "42" {
				atomic.StoreInt32(&sawCookie, 1)
			}
		}
	}))
	defer srv.Close()

	client, err := session.NewHTTPClient(time.Minute)
	assert.NoError(t, err)
	resp, err := client.Get(srv.URL + "/login")
	assert.NoError(t, err)
	resp.Body.Close()
	expect.EQ(t, resp.StatusCode, http.StatusFound)
	expect.EQ(t, resp.Header.Get("Location"), "/start")

	resp, err = client.Get(srv.URL + "/start")
	assert.NoError(t, err)
	resp.Body.Close()
	expect.EQ(t, atomic.LoadInt32(&sawCookie), int32(1))
}
