// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package handshake_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/grailbio/lanis/crypto/rsakey"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/handshake"
	"github.com/grailbio/lanis/handshake/portaltest"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func newKeyPair(t *testing.T) *rsakey.KeyPair {
	t.Helper()
	kp, err := rsakey.Generate(rsakey.DefaultBits)
	assert.NoError(t, err)
	return kp
}

func TestRun(t *testing.T) {
	portal := portaltest.New(t)
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL(), UserAgent: "lanis-test"}
	kp := newKeyPair(t)
	before := promtest.ToFloat64(handshake.Counter.WithLabelValues("ok"))
	accepted, err := c.Run(context.Background(), kp)
	assert.NoError(t, err)
	expect.EQ(t, promtest.ToFloat64(handshake.Counter.WithLabelValues("ok")), before+1)

	expect.True(t, accepted.AcceptedToken != "")
	expect.EQ(t, kp.AcceptedToken, "")
	expect.EQ(t, accepted.PublicKeyPEM, kp.PublicKeyPEM)
	expect.EQ(t, portal.ClientKeys(), []string{kp.PublicKeyPEM})

	reqs := portal.Requests()
	assert.EQ(t, len(reqs), 2)
	expect.EQ(t, reqs[0].URL.RawQuery, "f=rsaPublicKey")
	q := reqs[1].URL.Query()
	expect.EQ(t, q.Get("f"), "rsaHandshake")
	expect.EQ(t, q.Get("s"), "1111")
	expect.EQ(t, reqs[1].PostForm.Get("key"), accepted.AcceptedToken)
	for _, r := range reqs {
		expect.EQ(t, r.Method, http.MethodPost)
		expect.EQ(t, r.Header.Get("Accept"), "*/*")
		expect.EQ(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded; charset=UTF-8")
		expect.EQ(t, r.Header.Get("Sec-Fetch-Dest"), "empty")
		expect.EQ(t, r.Header.Get("Sec-Fetch-Mode"), "cors")
		expect.EQ(t, r.Header.Get("Sec-Fetch-Site"), "same-origin")
		expect.EQ(t, r.Header.Get("User-Agent"), "lanis-test")
	}
}

func TestServerKey(t *testing.T) {
	portal := portaltest.New(t)
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	pub, err := c.ServerKey(context.Background())
	assert.NoError(t, err)
	expect.EQ(t, pub.N.Cmp(portal.Key.N), 0)

	for _, c2 := range []struct {
		status int
		body   string
		kind   errors.Kind
	}{
		{http.StatusInternalServerError, "", errors.Net},
		{http.StatusOK, "not json", errors.Format},
		{http.StatusOK, `{"other": 1}`, errors.Format},
		{http.StatusOK, `{"publickey": "not pem"}`, errors.Format},
	} {
		portal.Fail(c2.status, c2.body)
		_, err := c.ServerKey(context.Background())
		if !errors.Is(c2.kind, err) {
			t.Errorf("status %d body %q: got %v, want %v", c2.status, c2.body, err, c2.kind)
		}
	}
}

func TestUnreachable(t *testing.T) {
	portal := portaltest.New(t)
	url := portal.AjaxURL()
	portal.Close()
	c := &handshake.Client{AjaxURL: url}
	_, err := c.Run(context.Background(), newKeyPair(t))
	expect.True(t, errors.Is(errors.Net, err))
}

func TestCanceled(t *testing.T) {
	portal := portaltest.New(t)
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, newKeyPair(t))
	expect.True(t, errors.Is(errors.Canceled, err))
}

func TestWrongKey(t *testing.T) {
	portal := portaltest.New(t)
	other := newKeyPair(t)
	portal.SetChallenger(func(clientPEM string) (string, error) {
		return salted.Encrypt([]byte(clientPEM), other.PublicKeyPEM)
	})
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	before := promtest.ToFloat64(handshake.Counter.WithLabelValues(errors.HandshakeFailed.Name()))
	_, err := c.Run(context.Background(), newKeyPair(t))
	expect.True(t, errors.Is(errors.HandshakeFailed, err))
	expect.True(t, errors.IsTemporary(err))
	expect.EQ(t, promtest.ToFloat64(handshake.Counter.WithLabelValues(errors.HandshakeFailed.Name())), before+1)
}

func TestMismatch(t *testing.T) {
	portal := portaltest.New(t)
	other := newKeyPair(t)
	portal.SetChallenger(func(clientPEM string) (string, error) {
		return salted.Encrypt([]byte(other.PublicKeyPEM), clientPEM)
	})
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	_, err := c.Run(context.Background(), newKeyPair(t))
	expect.True(t, errors.Is(errors.HandshakeFailed, err))
}

func TestMissingChallenge(t *testing.T) {
	portal := portaltest.New(t)
	portal.SetChallenger(func(string) (string, error) { return "", nil })
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	_, err := c.Run(context.Background(), newKeyPair(t))
	expect.True(t, errors.Is(errors.Format, err))
}

func TestOversizedKey(t *testing.T) {
	portal := portaltest.New(t)
	c := &handshake.Client{HTTPClient: portal.Client(), AjaxURL: portal.AjaxURL()}
	kp, err := rsakey.Generate(1024)
	assert.NoError(t, err)
	_, err = c.Run(context.Background(), kp)
	expect.True(t, errors.Is(errors.Encryption, err))
}

func TestVerifyChallenge(t *testing.T) {
	kp := newKeyPair(t)
	pem := kp.PublicKeyPEM
	challenge, err := salted.Encrypt([]byte(pem), pem)
	assert.NoError(t, err)
	assert.NoError(t, handshake.VerifyChallenge(challenge, pem))

	// Foreign padding conventions.
	for _, suffix := range []string{"\x00\x00\x00", "   \n", "\r\n"} {
		challenge, err := salted.Encrypt([]byte(pem+suffix), pem)
		assert.NoError(t, err)
		expect.NoError(t, handshake.VerifyChallenge(challenge, pem))
	}

	for _, bad := range []string{"", "!!!", base64.StdEncoding.EncodeToString([]byte("not salted at all"))} {
		expect.True(t, errors.Is(errors.HandshakeFailed, handshake.VerifyChallenge(bad, pem)))
	}
}

// TestChallengeMutation flips every byte of a valid challenge in turn;
// each mutation must fail verification.
func TestChallengeMutation(t *testing.T) {
	kp := newKeyPair(t)
	pem := kp.PublicKeyPEM
	challenge, err := salted.Encrypt([]byte(pem), pem)
	assert.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(challenge)
	assert.NoError(t, err)
	for i := range raw {
		for _, bit := range []byte{0x01, 0x80} {
			mutated := append([]byte(nil), raw...)
			mutated[i] ^= bit
			err := handshake.VerifyChallenge(base64.StdEncoding.EncodeToString(mutated), pem)
			if !errors.Is(errors.HandshakeFailed, err) {
				t.Fatalf("byte %d bit %x: got %v, want handshake failure", i, bit, err)
			}
		}
	}
}
