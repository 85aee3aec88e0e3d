// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package handshake implements the portal's key agreement. The client
// fetches the portal's RSA public key, encrypts its own PEM-encoded
// public key under it and submits the result. The portal answers with
// a challenge: the client's public key encrypted as a salted blob
// under the client's public key. A handshake succeeds when the
// challenge decrypts to the client's key; from then on that PEM text
// is the passphrase of all salted blobs exchanged in the session.
//
// Handshakes are not retried here. A failed handshake has kind
// errors.HandshakeFailed and should be repeated with a fresh key pair.
package handshake

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
	"github.com/grailbio/lanis/crypto/rsakey"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultAjaxURL is the portal's AJAX endpoint.
const DefaultAjaxURL = "https://start.schulportal.hessen.de/ajax.php"

// maxResponseSize bounds the JSON responses read from the portal.
const maxResponseSize = 1 << 20

// Counter counts handshakes by result: "ok" or the name of the
// failure's kind.
var Counter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lanis_handshake_op",
	Help: "Total number of handshakes by result.",
}, []string{"result"})

var encoder = schema.NewEncoder()

// query is the URL query of an AJAX call.
type query struct {
	Function string `schema:"f"`
	S        string `schema:"s,omitempty"`
}

// submission is the form body of the rsaHandshake call.
type submission struct {
	Key string `schema:"key"`
}

type publicKeyResponse struct {
	PublicKey string `json:"publickey"`
}

type challengeResponse struct {
	Challenge string `json:"challenge"`
}

// Client performs handshakes against a portal.
type Client struct {
	// HTTPClient is used for all requests. http.DefaultClient is used
	// if it is nil.
	HTTPClient *http.Client
	// AjaxURL is the portal's AJAX endpoint. DefaultAjaxURL is used if
	// it is empty.
	AjaxURL string
	// UserAgent is sent with every request if it is not empty.
	UserAgent string
}

// ServerKey fetches the portal's RSA public key.
func (c *Client) ServerKey(ctx context.Context) (*rsa.PublicKey, error) {
	var resp publicKeyResponse
	if err := c.post(ctx, query{Function: "rsaPublicKey"}, nil, &resp); err != nil {
		return nil, errors.E("fetching server key", err)
	}
	if resp.PublicKey == "" {
		return nil, errors.E(errors.Format, "fetching server key: response has no publickey")
	}
	pub, err := rsakey.ParsePublicKeyPEM(resp.PublicKey)
	if err != nil {
		return nil, errors.E("fetching server key", err)
	}
	return pub, nil
}

// Run performs a handshake for kp. On success it returns a copy of kp
// whose AcceptedToken is the encrypted public key that the portal
// accepted.
func (c *Client) Run(ctx context.Context, kp *rsakey.KeyPair) (*rsakey.KeyPair, error) {
	accepted, err := c.run(ctx, kp)
	if err != nil {
		Counter.WithLabelValues(errors.Recover(err).Kind.Name()).Inc()
		return nil, err
	}
	Counter.WithLabelValues("ok").Inc()
	return accepted, nil
}

func (c *Client) run(ctx context.Context, kp *rsakey.KeyPair) (*rsakey.KeyPair, error) {
	pub, err := c.ServerKey(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug.Printf("handshake: server key has %d bits", pub.N.BitLen())
	token, err := rsakey.EncryptPKCS1v15(pub, []byte(kp.PublicKeyPEM))
	if err != nil {
		return nil, errors.E("encrypting own key", err)
	}
	var resp challengeResponse
	form := submission{Key: token}
	if err := c.post(ctx, query{Function: "rsaHandshake", S: "1111"}, form, &resp); err != nil {
		return nil, errors.E("submitting own key", err)
	}
	if resp.Challenge == "" {
		return nil, errors.E(errors.Format, "submitting own key: response has no challenge")
	}
	if err := VerifyChallenge(resp.Challenge, kp.PublicKeyPEM); err != nil {
		return nil, err
	}
	log.Debug.Print("handshake: challenge verified")
	return kp.WithToken(token), nil
}

// VerifyChallenge checks that challenge decrypts, with publicKeyPEM as
// the passphrase, to publicKeyPEM. Surrounding white space and
// padding are ignored. Every failure has kind errors.HandshakeFailed.
func VerifyChallenge(challenge, publicKeyPEM string) error {
	text, err := salted.DecryptText(challenge, publicKeyPEM)
	if err != nil {
		return errors.E(errors.HandshakeFailed, errors.Retriable, "decrypting challenge", err)
	}
	if text != strings.TrimSpace(publicKeyPEM) {
		return errors.E(errors.HandshakeFailed, errors.Retriable, "challenge does not match own public key")
	}
	return nil
}

// post calls the AJAX endpoint with the given query and, if form is
// not nil, a form-encoded body, and decodes the JSON response into v.
func (c *Client) post(ctx context.Context, q query, form interface{}, v interface{}) error {
	u, err := url.Parse(c.ajaxURL())
	if err != nil {
		return errors.E(errors.Invalid, "parsing ajax url", err)
	}
	params := u.Query()
	if err := encoder.Encode(q, params); err != nil {
		return errors.E(errors.Invalid, "encoding query", err)
	}
	u.RawQuery = params.Encode()
	body := url.Values{}
	if form != nil {
		if err := encoder.Encode(form, body); err != nil {
			return errors.E(errors.Invalid, "encoding form", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(body.Encode()))
	if err != nil {
		return errors.E(errors.Invalid, "creating request", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.E(ctx.Err())
		}
		return errors.E(errors.Net, fmt.Sprintf("POST %s?f=%s", u.Path, q.Function), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.E(errors.Net, fmt.Sprintf("POST %s?f=%s: %s", u.Path, q.Function, resp.Status))
	}
	p, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.E(errors.Net, "reading response", err)
	}
	if err := json.Unmarshal(p, v); err != nil {
		return errors.E(errors.Format, "decoding response", err)
	}
	return nil
}

// setHeaders sets the headers of the portal's own script.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

func (c *Client) ajaxURL() string {
	if c.AjaxURL == "" {
		return DefaultAjaxURL
	}
	return c.AjaxURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
