// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var reBaseURL = regexp.MustCompile(`^https?://\S+:?\d*/?\S*/$`)

const apiPath = "api/"

type urlParts struct {
	override string
	name     string
	hostname string
	port     int
	path     string
	tls      bool
}

func resolveBaseURL(p urlParts) (string, error) {
	base := p.override
	if base == "" {
		base = composeBaseURL(p)
	}

	if !reBaseURL.MatchString(base) {
		return "", fmt.Errorf("%w: '%s' is not a valid base URL", ErrConfiguration, base)
	}
	return base, nil
}

func composeBaseURL(p urlParts) string {
	host := p.hostname
	if host == "" {
		host = p.name
		if !strings.Contains(host, ".") {
			host = strings.ReplaceAll(host, "_", ".")
		}
	}

	path := p.path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	scheme := "http"
	if p.tls {
		scheme = "https"
	}

	var port string
	if p.port != 0 {
		port = ":" + strconv.Itoa(p.port)
	}

	return scheme + "://" + host + port + path
}

func apiURL(base string) string {
	return base + apiPath
}
