// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package encoded_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/lanis/encoded"
	"github.com/grailbio/lanis/errors"
	"github.com/grailbio/lanis/log"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

const passphrase = "-----BEGIN PUBLIC KEY-----\nMCwwDQYJKoZIhvcNAQEBBQADGwAwGAIRAMdkO1s6xXdgLQ2/ZEmJ6q8CAwEAAQ==\n-----END PUBLIC KEY-----\n"

func mustEncode(t *testing.T, plaintext, passphrase string) string {
	t.Helper()
	s, err := encoded.Encode([]byte(plaintext), passphrase)
	assert.NoError(t, err)
	return s
}

func TestDecode(t *testing.T) {
	var (
		d     = encoded.NewDecoder(passphrase)
		plain = []string{"Mathe", "", "Raum <b>204</b>", "Ä Ö Ü ß"}
		html  strings.Builder
		want  strings.Builder
	)
	for i, p := range plain {
		filler := fmt.Sprintf("<td class=\"c%d\">", i)
		html.WriteString(filler)
		want.WriteString(filler)
		html.WriteString(mustEncode(t, p, passphrase))
		want.WriteString(p)
	}
	html.WriteString("</td>\n")
	want.WriteString("</td>\n")

	frags := d.Fragments(html.String())
	assert.EQ(t, len(frags), len(plain))
	for i, f := range frags {
		expect.EQ(t, html.String()[f.Start:f.End], f.Raw)
		expect.True(t, strings.HasPrefix(f.Raw, "<encoded>"))
		text, err := d.Decrypt(f)
		assert.NoError(t, err)
		expect.EQ(t, text, plain[i])
	}
	expect.EQ(t, d.Decode(html.String()), want.String())
}

func TestDecodeFailures(t *testing.T) {
	d := encoded.NewDecoder(passphrase)
	html := "<p>" + mustEncode(t, "eins", passphrase) +
		"|<encoded>bm90IHNhbHRlZA==</encoded>|" +
		"<encoded>***</encoded>|" +
		mustEncode(t, "foreign", "another passphrase") + "|" +
		mustEncode(t, "zwei", passphrase) + "</p>"

	frags, failures := promtest.ToFloat64(encoded.FragmentCounter), promtest.ToFloat64(encoded.FailureCounter)
	got := d.Decode(html)
	expect.True(t, strings.HasPrefix(got, "<p>eins|||"))
	expect.True(t, strings.HasSuffix(got, "|zwei</p>"))
	expect.EQ(t, promtest.ToFloat64(encoded.FragmentCounter), frags+5)
	// The foreign fragment fails with overwhelming probability but may
	// unpad by chance.
	expect.True(t, promtest.ToFloat64(encoded.FailureCounter) >= failures+2)

	_, err := d.Decrypt(d.Fragments("<encoded>bm90IHNhbHRlZA==</encoded>")[0])
	expect.True(t, errors.Is(errors.Format, err))
}

func TestDecodeUnchanged(t *testing.T) {
	d := encoded.NewDecoder(passphrase)
	for _, html := range []string{
		"",
		"<html><body>Stundenplan</body></html>",
		"<encoded>unterminated",
		"</encoded><encoded>",
		// Fragments do not span lines.
		"<encoded>U2FsdGVk\nX18=</encoded>",
	} {
		expect.EQ(t, d.Decode(html), html)
		expect.EQ(t, len(d.Fragments(html)), 0)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	d := encoded.NewDecoder(passphrase)
	for i := 0; i < 100; i++ {
		var prefix, plaintext, suffix string
		fz.Fuzz(&prefix)
		fz.Fuzz(&plaintext)
		fz.Fuzz(&suffix)
		if strings.Contains(prefix+suffix, "<encoded>") {
			continue
		}
		html := prefix + mustEncode(t, plaintext, passphrase) + suffix
		if got, want := d.Decode(html), prefix+plaintext+suffix; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestDecodeAll(t *testing.T) {
	d := encoded.NewDecoder(passphrase)
	const N = 50
	docs := make([]string, N)
	for i := range docs {
		docs[i] = fmt.Sprintf("<li>%s</li>", mustEncode(t, fmt.Sprint(i), passphrase))
	}
	out := d.DecodeAll(docs)
	assert.EQ(t, len(out), N)
	for i, doc := range out {
		expect.EQ(t, doc, fmt.Sprintf("<li>%d</li>", i))
	}
}

type levels struct {
	mu     sync.Mutex
	counts map[log.Level]int
}

func (l *levels) Level() log.Level { return log.Debug }

func (l *levels) Output(calldepth int, level log.Level, s string) error {
	l.mu.Lock()
	l.counts[level]++
	l.mu.Unlock()
	return nil
}

func TestDecodeAllDropsFailures(t *testing.T) {
	l := &levels{counts: make(map[log.Level]int)}
	defer log.SetOutputter(log.SetOutputter(l))

	d := encoded.NewDecoder(passphrase)
	docs := make([]string, 20)
	for i := range docs {
		if i%2 == 0 {
			docs[i] = fmt.Sprintf("<li>%s</li>", mustEncode(t, fmt.Sprint(i), passphrase))
		} else {
			docs[i] = "<li><encoded>bm90IHNhbHRlZA==</encoded></li>"
		}
	}
	out := d.DecodeAll(docs)
	for i, doc := range out {
		want := "<li></li>"
		if i%2 == 0 {
			want = fmt.Sprintf("<li>%d</li>", i)
		}
		expect.EQ(t, doc, want)
	}
	expect.EQ(t, l.counts[log.Debug], 10)
	expect.EQ(t, l.counts[log.Error], 0)
}

func TestCounters(t *testing.T) {
	expect.EQ(t, promtest.CollectAndCount(encoded.FragmentCounter, "lanis_encoded_fragment_op"), 1)
	expect.EQ(t, promtest.CollectAndCount(encoded.FailureCounter, "lanis_encoded_fragment_failures"), 1)
}
