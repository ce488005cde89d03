// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zmwatch/zmwatch/pkg/buildinfo"
)

// RequestConfig is the configuration of the HTTP request.
type RequestConfig struct {
	// URL specifies the URL to access.
	URL string `yaml:"url" json:"url"`

	// ProxyUsername and ProxyPassword authenticate the user agent to a proxy server.
	ProxyUsername string `yaml:"proxy_username,omitempty" json:"proxy_username"`
	ProxyPassword string `yaml:"proxy_password,omitempty" json:"proxy_password"`

	// Method specifies the HTTP method (GET, POST, etc.). An empty string means GET.
	Method string `yaml:"method,omitempty" json:"method"`

	// Headers specifies the HTTP request header fields to be sent by the client.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers"`

	// Body specifies the HTTP request body to be sent by the client.
	Body string `yaml:"body,omitempty" json:"body"`
}

// Copy makes a full copy of the RequestConfig.
func (r RequestConfig) Copy() RequestConfig {
	if r.Headers == nil {
		return r
	}

	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	r.Headers = headers
	return r
}

var userAgent = fmt.Sprintf("zmwatch.plugin/%s", buildinfo.Version)

// NewHTTPRequest returns a new *http.Request bound to ctx given a RequestConfig.
func NewHTTPRequest(ctx context.Context, cfg RequestConfig) (*http.Request, error) {
	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(cfg.Body)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
		basicAuth := base64.StdEncoding.EncodeToString([]byte(cfg.ProxyUsername + ":" + cfg.ProxyPassword))
		req.Header.Set("Proxy-Authorization", "Basic "+basicAuth)
	}

	for k, v := range cfg.Headers {
		switch strings.ToLower(k) {
		case "host":
			req.Host = v
		default:
			req.Header.Set(k, v)
		}
	}

	return req, nil
}

// NewHTTPRequestWithPath creates a new HTTP request with the given path appended to the base URL.
// The path may carry a raw query ("index.php?view=console"), it is kept as-is.
func NewHTTPRequestWithPath(ctx context.Context, cfg RequestConfig, urlPath string) (*http.Request, error) {
	cfg = cfg.Copy()

	path, rawQuery, _ := strings.Cut(urlPath, "?")

	v, err := url.JoinPath(cfg.URL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to join URL path: %w", err)
	}
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(v, "/") {
		v += "/"
	}
	if rawQuery != "" {
		v += "?" + rawQuery
	}
	cfg.URL = v

	return NewHTTPRequest(ctx, cfg)
}
