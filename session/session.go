// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package session establishes secure sessions with the portal. A
// session owns an HTTP client with a cookie jar and the key pair that
// the portal accepted during the handshake. The key pair's PEM public
// key is the passphrase for all payloads exchanged in the session.
package session

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/grailbio/lanis/config"
	"github.com/grailbio/lanis/crypto/rsakey"
	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/encoded"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/handshake"
	"github.com/grailbio/lanis/log"
	"github.com/grailbio/lanis/retry"
	"golang.org/x/net/publicsuffix"
)

// ErrMessage is the message of errors returned by New.
const ErrMessage = "could not establish secure session"

// Options configures New.
type Options struct {
	// AjaxURL is the portal's AJAX endpoint.
	AjaxURL string
	// KeyBits is the modulus size of session key pairs. The PEM
	// encoding of the public key must fit in one PKCS#1 v1.5 block
	// under the portal's key.
	KeyBits int
	// HandshakeTries is the number of handshakes attempted, each with
	// a fresh key pair, before New gives up.
	HandshakeTries int
	// Timeout is the timeout of each HTTP request.
	Timeout time.Duration
	// UserAgent is sent with every handshake request if not empty.
	UserAgent string
	// HTTPClient is used for all requests if it is not nil. Otherwise
	// New creates a client with a cookie jar that does not follow
	// redirects.
	HTTPClient *http.Client
}

// DefaultOptions returns the options used by the portal's own
// script.
func DefaultOptions() Options {
	return Options{
		AjaxURL:        handshake.DefaultAjaxURL,
		KeyBits:        rsakey.DefaultBits,
		HandshakeTries: 3,
		Timeout:        30 * time.Second,
	}
}

func init() {
	config.Register("lanis/session", func(inst *config.Constructor) {
		opts := DefaultOptions()
		inst.StringVar(&opts.AjaxURL, "ajax-url", opts.AjaxURL, "the portal's AJAX endpoint")
		inst.IntVar(&opts.KeyBits, "key-bits", opts.KeyBits, "modulus size of session key pairs")
		inst.IntVar(&opts.HandshakeTries, "handshake-tries", opts.HandshakeTries, "handshakes attempted before giving up")
		inst.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "timeout of each HTTP request")
		inst.StringVar(&opts.UserAgent, "user-agent", "", "user agent sent to the portal")
		inst.Doc = "options of portal sessions"
		inst.New = func() (interface{}, error) {
			return opts, nil
		}
	})
}

// RetryPolicy is the backoff between handshake attempts. The number
// of attempts is bounded by Options.HandshakeTries.
var RetryPolicy = retry.Jitter(retry.Backoff(200*time.Millisecond, 5*time.Second, 2), 0.25)

// Session is an established portal session.
type Session struct {
	id      string
	keyPair *rsakey.KeyPair
	client  *http.Client
	decoder *encoded.Decoder
}

// NewHTTPClient returns the HTTP client of a session: it keeps
// cookies per registrable domain and returns redirects to the caller
// instead of following them.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.E("creating cookie jar", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// New establishes a session. A handshake that fails verification is
// repeated with a fresh key pair, up to opts.HandshakeTries attempts;
// any other failure is returned immediately. Errors carry ErrMessage
// and the kind of the last failure.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.KeyBits <= 0 || opts.HandshakeTries <= 0 {
		return nil, errors.E(errors.Invalid, ErrMessage, "invalid options")
	}
	client := opts.HTTPClient
	if client == nil {
		var err error
		if client, err = NewHTTPClient(opts.Timeout); err != nil {
			return nil, errors.E(ErrMessage, err)
		}
	}
	var (
		id     = uuid.New().String()
		logger = log.Prefix("session " + id)
		hc     = &handshake.Client{HTTPClient: client, AjaxURL: opts.AjaxURL, UserAgent: opts.UserAgent}
		policy = retry.MaxTries(RetryPolicy, opts.HandshakeTries)
	)
	for retries := 0; ; retries++ {
		kp, err := rsakey.Generate(opts.KeyBits)
		if err != nil {
			return nil, errors.E(ErrMessage, err)
		}
		accepted, err := hc.Run(ctx, kp)
		if err == nil {
			logger.Debugf("established after %d handshakes", retries+1)
			return &Session{
				id:      id,
				keyPair: accepted,
				client:  client,
				decoder: encoded.NewDecoder(accepted.PublicKeyPEM),
			}, nil
		}
		if !errors.Is(errors.HandshakeFailed, err) {
			return nil, errors.E(ErrMessage, err)
		}
		logger.Printf("handshake %d failed: %v", retries+1, err)
		if werr := retry.Wait(ctx, policy, retries); werr != nil {
			if errors.Is(errors.TooManyTries, werr) {
				return nil, errors.E(ErrMessage, err)
			}
			return nil, errors.E(ErrMessage, werr)
		}
	}
}

// ID returns the session's identifier, used in log messages.
func (s *Session) ID() string { return s.id }

// KeyPair returns the key pair accepted by the portal.
func (s *Session) KeyPair() *rsakey.KeyPair { return s.keyPair }

// Passphrase returns the passphrase of the session's salted blobs.
func (s *Session) Passphrase() string { return s.keyPair.PublicKeyPEM }

// HTTPClient returns the session's HTTP client. Requests made with it
// share the session's cookies.
func (s *Session) HTTPClient() *http.Client { return s.client }

// Decoder returns the decoder of the session's encoded fragments.
func (s *Session) Decoder() *encoded.Decoder { return s.decoder }

// DecodeDocument decrypts the encoded fragments of html.
func (s *Session) DecodeDocument(html string) string {
	return s.decoder.Decode(html)
}

// Encrypt encrypts a payload to be sent to the portal.
func (s *Session) Encrypt(data []byte) (string, error) {
	return salted.Encrypt(data, s.Passphrase())
}

// Decrypt decrypts a payload received from the portal.
func (s *Session) Decrypt(blob string) ([]byte, error) {
	return salted.Decrypt(blob, s.Passphrase())
}

// DecryptString decrypts a text payload received from the portal,
// trimming surrounding white space and padding.
func (s *Session) DecryptString(blob string) (string, error) {
	return salted.DecryptText(blob, s.Passphrase())
}
