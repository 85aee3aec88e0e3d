// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package portaltest provides an in-process fake of the portal's AJAX
// endpoint for tests.
package portaltest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/grailbio/lanis/crypto/salted"
)

// Challenger computes the challenge for a submitted client key.
type Challenger func(clientPEM string) (string, error)

// Echo is the portal's behavior: the client key encrypted under
// itself.
func Echo(clientPEM string) (string, error) {
	return salted.Encrypt([]byte(clientPEM), clientPEM)
}

// Portal is a fake portal. Its fields may be changed between
// requests.
type Portal struct {
	*httptest.Server
	Key *rsa.PrivateKey

	mu         sync.Mutex
	challenger Challenger
	status     int
	body       string
	requests   []*http.Request
	clientKeys []string
}

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// New starts a fake portal that is closed when the test completes.
// All portals in a test binary share one 1024-bit server key.
func New(t testing.TB) *Portal {
	t.Helper()
	keyOnce.Do(func() { key, keyErr = rsa.GenerateKey(rand.Reader, 1024) })
	if keyErr != nil {
		t.Fatal(keyErr)
	}
	p := &Portal{Key: key, challenger: Echo}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

// AjaxURL returns the URL of the fake AJAX endpoint.
func (p *Portal) AjaxURL() string {
	return p.URL + "/ajax.php"
}

// SetChallenger sets the function that computes challenges.
func (p *Portal) SetChallenger(c Challenger) {
	p.mu.Lock()
	p.challenger = c
	p.mu.Unlock()
}

// Fail makes every subsequent request respond with the given status
// and body. A zero status restores normal operation.
func (p *Portal) Fail(status int, body string) {
	p.mu.Lock()
	p.status, p.body = status, body
	p.mu.Unlock()
}

// Requests returns the requests served so far. Their bodies have been
// consumed.
func (p *Portal) Requests() []*http.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*http.Request(nil), p.requests...)
}

// ClientKeys returns the decrypted client keys submitted so far.
func (p *Portal) ClientKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clientKeys...)
}

func (p *Portal) serve(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.requests = append(p.requests, r)
	status, body, challenger := p.status, p.body, p.challenger
	p.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
		return
	}
	if r.Method != http.MethodPost || r.URL.Path != "/ajax.php" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch q := r.URL.Query(); {
	case q.Get("f") == "rsaPublicKey":
		der, err := x509.MarshalPKIXPublicKey(&p.Key.PublicKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{
			"publickey": string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		})
	case q.Get("f") == "rsaHandshake" && q.Get("s") == "1111":
		ct, err := base64.StdEncoding.DecodeString(r.PostFormValue("key"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		clientPEM, err := rsa.DecryptPKCS1v15(rand.Reader, p.Key, ct)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.clientKeys = append(p.clientKeys, string(clientPEM))
		p.mu.Unlock()
		challenge, err := challenger(string(clientPEM))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"challenge": challenge})
	default:
		http.Error(w, "unknown function", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
