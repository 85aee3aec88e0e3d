// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors

// Kind classifies an error. Callers branch on kinds, for example to
// repeat a failed handshake with a fresh key pair.
type Kind int

const (
	// Other is the kind of unclassified errors.
	Other Kind = iota
	// Canceled is the kind of context cancellations.
	Canceled
	// Timeout is the kind of expired deadlines.
	Timeout
	// NotExist is the kind of missing resources, such as secrets
	// that were never stored.
	NotExist
	// Invalid is the kind of bad arguments.
	Invalid
	// Net is the kind of transport failures and unexpected HTTP
	// responses.
	Net
	// Format is the kind of malformed base64, JSON or PEM data,
	// including blobs without the salted header.
	Format
	// Encryption is the kind of cipher failures while encrypting,
	// such as an RSA message larger than the modulus allows.
	Encryption
	// Decryption is the kind of cipher and padding failures while
	// decrypting.
	Decryption
	// HandshakeFailed is the kind of challenges that do not prove
	// agreement on the session passphrase.
	HandshakeFailed
	// Serialization is the kind of values that cannot be encoded for
	// encryption.
	Serialization
	// Deserialization is the kind of decrypted bytes that do not
	// decode into the expected value.
	Deserialization
	// TooManyTries is the kind of exhausted retry budgets.
	TooManyTries
)

var kindInfo = [...]struct{ name, text string }{
	Other:           {"other", "unknown error"},
	Canceled:        {"canceled", "operation was canceled"},
	Timeout:         {"timeout", "operation timed out"},
	NotExist:        {"not_exist", "resource does not exist"},
	Invalid:         {"invalid", "invalid argument"},
	Net:             {"net", "network error"},
	Format:          {"format", "malformed data"},
	Encryption:      {"encryption", "encryption failed"},
	Decryption:      {"decryption", "decryption failed"},
	HandshakeFailed: {"handshake_failed", "handshake failed"},
	Serialization:   {"serialization", "serialization failed"},
	Deserialization: {"deserialization", "deserialization failed"},
	TooManyTries:    {"too_many_tries", "too many tries"},
}

func (k Kind) valid() bool { return k >= 0 && int(k) < len(kindInfo) }

// String describes the kind as it appears in error messages.
func (k Kind) String() string {
	if !k.valid() {
		return "unknown error"
	}
	return kindInfo[k].text
}

// Name is a short identifier of the kind, suitable as a metric label.
func (k Kind) Name() string {
	if !k.valid() {
		return "other"
	}
	return kindInfo[k].name
}

// Severity tells whether a failed operation may be repeated.
type Severity int

const (
	// Retriable operations may be repeated as they are.
	Retriable Severity = -2
	// Temporary failures are likely to go away; whether to retry is
	// up to the caller.
	Temporary Severity = -1
	// Unknown is the default severity.
	Unknown Severity = 0
	// Fatal failures will not go away on retry.
	Fatal Severity = 1
)

func (s Severity) String() string {
	switch s {
	case Retriable:
		return "retriable"
	case Temporary:
		return "temporary"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}
