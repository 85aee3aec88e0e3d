// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package keychain registers the "keychain" keycrypt scheme on macOS.
// Secrets are stored in the login keychain under the service
// com.grail.lanis.$namespace with the secret's name as account. On
// other platforms importing the package has no effect.
package keychain
