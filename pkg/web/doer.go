// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize caps how much of a response body is read. Console pages of large installs are a few MB.
const maxBodySize = 32 << 20

// StatusError is returned when the server answers with an unexpected status code.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("'%s' returned HTTP status code: %d (%s)", e.URL, e.StatusCode, e.Status)
}

// IsStatusCode reports whether err is a StatusError with the given code.
func IsStatusCode(err error, code int) bool {
	var v *StatusError
	return errors.As(err, &v) && v.StatusCode == code
}

// Doer executes requests and hands the response body to a parse function.
type Doer struct {
	client   *http.Client
	validate func(code int) bool
}

// DoHTTP returns a Doer that accepts only 2xx responses.
func DoHTTP(client *http.Client) *Doer {
	return &Doer{
		client:   client,
		validate: func(code int) bool { return code >= 200 && code < 300 },
	}
}

// WithStatusCodeValidator replaces the status code check.
func (d *Doer) WithStatusCodeValidator(fn func(code int) bool) *Doer {
	d.validate = fn
	return d
}

// Request performs req, validates the status code and calls parse with the (size limited) body.
// parse may be nil, then the body is drained.
func (d *Doer) Request(req *http.Request, parse func(resp *http.Response, body io.Reader) error) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("error on HTTP request '%s': %w", req.URL, err)
	}
	defer closeBody(resp)

	if !d.validate(resp.StatusCode) {
		return &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if parse == nil {
		return nil
	}
	return parse(resp, io.LimitReader(resp.Body, maxBodySize))
}

// RequestBytes performs req and returns the whole response body.
func (d *Doer) RequestBytes(req *http.Request) ([]byte, error) {
	var bs []byte
	err := d.Request(req, func(_ *http.Response, body io.Reader) error {
		var err error
		if bs, err = io.ReadAll(body); err != nil {
			return fmt.Errorf("error on reading response from '%s': %w", req.URL, err)
		}
		return nil
	})
	return bs, err
}

// RequestJSON performs req and decodes the JSON response body into dst.
func (d *Doer) RequestJSON(req *http.Request, dst any) error {
	return d.Request(req, func(_ *http.Response, body io.Reader) error {
		if err := json.NewDecoder(body).Decode(dst); err != nil {
			return fmt.Errorf("error on decoding JSON response from '%s': %w", req.URL, err)
		}
		return nil
	})
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
	}
}
