// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/lanis/config"
	"github.com/grailbio/lanis/session"
)

// Handshake establishes a session with the portal.
func Handshake(ctx context.Context, _ io.Reader, out io.Writer, args []string) error {
	var opts session.Options
	if err := config.Instance("lanis/session", &opts); err != nil {
		return err
	}
	var (
		flags       = newFlagSet("handshake")
		ajaxURLFlag = flags.String("ajax-url", opts.AjaxURL, "the portal's AJAX endpoint")
		triesFlag   = flags.Int("tries", opts.HandshakeTries, "handshakes attempted before giving up")
	)
	if err := parseFlags(flags, args); err != nil {
		return err
	}
	opts.AjaxURL, opts.HandshakeTries = *ajaxURLFlag, *triesFlag
	s, err := session.New(ctx, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "session %s\ntoken %s\n%s", s.ID(), s.KeyPair().AcceptedToken, s.Passphrase())
	return err
}
