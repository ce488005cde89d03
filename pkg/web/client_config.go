// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"

	"github.com/zmwatch/zmwatch/pkg/confopt"
	"github.com/zmwatch/zmwatch/pkg/tlscfg"
)

// ErrRedirectAttempted is returned by the client when NotFollowRedirect is set
// and the server answers with a redirect.
var ErrRedirectAttempted = errors.New("redirect")

type ClientConfig struct {
	// Timeout bounds the whole request, dial and TLS handshake included. Zero is no limit.
	Timeout confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
	// NotFollowRedirect makes any redirect an error.
	NotFollowRedirect bool `yaml:"not_follow_redirects,omitempty" json:"not_follow_redirects"`
	// ProxyURL overrides the HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment.
	ProxyURL string `yaml:"proxy_url,omitempty" json:"proxy_url"`

	tlscfg.TLSConfig `yaml:",inline" json:""`

	// ForceHTTP2 uses h2 over TLS and prior-knowledge h2c over plain TCP.
	ForceHTTP2 bool `yaml:"force_http2,omitempty" json:"force_http2"`
}

// NewHTTPClient builds a client without a cookie jar. See WithCookieJar.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	tlsConfig, err := tlscfg.NewTLSConfig(cfg.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("creating TLS config: %v", err)
	}

	var proxyURL *url.URL
	if cfg.ProxyURL != "" {
		if proxyURL, err = url.Parse(cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("parsing proxy URL '%s': %v", cfg.ProxyURL, err)
		}
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout.Duration()}

	var rt http.RoundTripper
	if cfg.ForceHTTP2 {
		rt = &http2Transport{
			tls: &http2.Transport{TLSClientConfig: tlsConfig},
			h2c: &http2.Transport{
				AllowHTTP:       true,
				TLSClientConfig: tlsConfig,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialer.DialContext(ctx, network, addr)
				},
			},
		}
	} else {
		proxy := http.ProxyFromEnvironment
		if proxyURL != nil {
			proxy = http.ProxyURL(proxyURL)
		}
		rt = &http.Transport{
			Proxy:               proxy,
			DialContext:         dialer.DialContext,
			TLSClientConfig:     tlsConfig,
			TLSHandshakeTimeout: cfg.Timeout.Duration(),
		}
	}

	client := &http.Client{
		Timeout:   cfg.Timeout.Duration(),
		Transport: rt,
	}
	if cfg.NotFollowRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return ErrRedirectAttempted }
	}
	return client, nil
}

// WithCookieJar returns a shallow copy of client with its own empty cookie
// jar. The copy shares the connection pool but no cookies.
func WithCookieJar(client *http.Client) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %v", err)
	}
	cl := *client
	cl.Jar = jar
	return &cl, nil
}

type http2Transport struct {
	tls *http2.Transport
	h2c *http2.Transport
}

func (t *http2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		return t.tls.RoundTrip(req)
	}
	return t.h2c.RoundTrip(req)
}

func (t *http2Transport) CloseIdleConnections() {
	t.tls.CloseIdleConnections()
	t.h2c.CloseIdleConnections()
}
