// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command lanis talks to the school portal's encrypted endpoints and
// manages locally stored portal credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/lanis/cmd/lanis/cmd"
	"github.com/grailbio/lanis/config"
	"github.com/grailbio/lanis/log"
	"github.com/grailbio/lanis/must"

	_ "github.com/grailbio/lanis/security/keycrypt/file"
	_ "github.com/grailbio/lanis/security/keycrypt/keychain"
	_ "github.com/grailbio/lanis/security/keycrypt/kms"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.AddFlags()
	home, err := os.UserHomeDir()
	must.Nil(err, "locating home directory")
	config.RegisterFlags("", filepath.Join(home, ".config", "lanis", "profile"))
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: lanis [flags] subcommand [args]\n\nFlags:\n")
		flag.PrintDefaults()
		cmd.PrintHelp()
	}
	flag.Parse()
	must.Nil(config.ProcessFlags())
	if err := cmd.Run(context.Background(), flag.Args()); err != nil {
		log.Fatal(err)
	}
}
