// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import "errors"

// Error kinds. Every error returned by a pass wraps exactly one of them.
var (
	// ErrConfiguration covers missing credentials and an invalid base URL. No request is made.
	ErrConfiguration = errors.New("configuration error")
	// ErrAuthentication covers rejected credentials and a login that issued no session cookies.
	ErrAuthentication = errors.New("authentication error")
	// ErrTransport covers network, timeout, HTTP status and malformed payload failures.
	ErrTransport = errors.New("transport error")
)

var (
	errInvalidCredentials = errors.New("invalid username or password")
	errNoSession          = errors.New("no session cookies received")
)
