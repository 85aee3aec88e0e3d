// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package encoded decrypts the <encoded>...</encoded> fragments that
// the portal embeds in otherwise plain HTML. Each fragment holds a
// salted blob under the session passphrase. Documents must be decoded
// before any field is extracted from them.
package encoded

import (
	"regexp"
	"strings"

	"github.com/grailbio/lanis/crypto/salted"
	"github.com/grailbio/lanis/log"
	"github.com/grailbio/lanis/traverse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	openTag  = "<encoded>"
	closeTag = "</encoded>"
)

var (
	// FragmentCounter counts the fragments Decode has tried to decrypt.
	FragmentCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanis_encoded_fragment_op",
		Help: "Total number of encoded fragments decrypted.",
	})

	// FailureCounter counts the fragments Decode dropped because they
	// did not decrypt.
	FailureCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanis_encoded_fragment_failures",
		Help: "Total number of encoded fragments that failed to decrypt.",
	})
)

// Fragment is one encoded fragment of a document.
type Fragment struct {
	// Raw is the fragment text including its tags.
	Raw string
	// Payload is the blob text between the tags.
	Payload string
	// Start and End are the byte offsets of Raw in the document.
	Start, End int
}

// Decoder decodes the documents of one session. A Decoder is safe for
// concurrent use.
type Decoder struct {
	passphrase string
	pattern    *regexp.Regexp
}

// NewDecoder returns a decoder for fragments encrypted under
// passphrase.
func NewDecoder(passphrase string) *Decoder {
	return &Decoder{
		passphrase: passphrase,
		pattern:    regexp.MustCompile(regexp.QuoteMeta(openTag) + `(.*?)` + regexp.QuoteMeta(closeTag)),
	}
}

// Fragments returns the encoded fragments of html in document order.
// Fragments do not span lines.
func (d *Decoder) Fragments(html string) []Fragment {
	matches := d.pattern.FindAllStringSubmatchIndex(html, -1)
	frags := make([]Fragment, len(matches))
	for i, m := range matches {
		frags[i] = Fragment{
			Raw:     html[m[0]:m[1]],
			Payload: html[m[2]:m[3]],
			Start:   m[0],
			End:     m[1],
		}
	}
	return frags
}

// Decrypt returns the plaintext of fragment f.
func (d *Decoder) Decrypt(f Fragment) (string, error) {
	p, err := salted.Decrypt(f.Payload, d.passphrase)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Decode returns html with every fragment, tags included, replaced by
// its plaintext. A fragment that fails to decrypt is replaced by the
// empty string; the rest of the document is unaffected.
func (d *Decoder) Decode(html string) string {
	frags := d.Fragments(html)
	if len(frags) == 0 {
		return html
	}
	var (
		b    strings.Builder
		last int
	)
	b.Grow(len(html))
	for _, f := range frags {
		b.WriteString(html[last:f.Start])
		text, err := d.Decrypt(f)
		FragmentCounter.Inc()
		if err != nil {
			FailureCounter.Inc()
			log.Debug.Printf("encoded: dropping fragment at offset %d: %v", f.Start, err)
		}
		b.WriteString(text)
		last = f.End
	}
	b.WriteString(html[last:])
	return b.String()
}

// DecodeAll decodes many documents in parallel. The i-th result is
// the decoding of docs[i]. Like Decode, DecodeAll does not fail:
// fragments that do not decrypt are dropped. A panic while decoding
// a document is propagated to the caller.
func (d *Decoder) DecodeAll(docs []string) []string {
	out := make([]string, len(docs))
	err := traverse.Parallel.Each(len(docs), func(i int) error {
		out[i] = d.Decode(docs[i])
		return nil
	})
	if err != nil {
		log.Error.Printf("encoded: decoding %d documents: %v", len(docs), err)
	}
	return out
}

// Encode encrypts plaintext under passphrase and wraps the blob in
// fragment tags.
func Encode(plaintext []byte, passphrase string) (string, error) {
	blob, err := salted.Encrypt(plaintext, passphrase)
	if err != nil {
		return "", err
	}
	return openTag + blob + closeTag, nil
}
