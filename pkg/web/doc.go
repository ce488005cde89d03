// SPDX-License-Identifier: GPL-3.0-or-later

/*
Package web contains HTTP request and client configurations and a small request helper.
ClientConfig is the structure intended to be embedded in a collector's configuration,
so every collector exposes the same set of transport options (timeout, proxy, TLS, redirects).
*/
package web
