// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/pkg/web"
)

type LoginMode string

const (
	LoginAuto     LoginMode = "auto"
	LoginStateful LoginMode = "stateful"
	LoginLegacy   LoginMode = "legacy"
)

const invalidCredentialsMarker = "Invalid username or password"

type endpointRole string

const (
	roleConsole       endpointRole = "console-page"
	roleVersion       endpointRole = "version"
	roleDaemonStatus  endpointRole = "daemon-status"
	roleRunState      endpointRole = "run-state"
	roleHostLoad      endpointRole = "host-load"
	roleEventCount    endpointRole = "event-count"
	roleMonitorDetail endpointRole = "monitor-detail"
	roleMonitorStatus endpointRole = "monitor-process-status"
)

const (
	urlPathConsole = "index.php?view=console"
	urlPathLogout  = "index.php?action=logout"
	urlPathLogin   = "index.php"

	urlPathVersion          = "api/host/getVersion.json"
	urlPathDaemonCheck      = "api/host/daemonCheck.json"
	urlPathStates           = "api/states.json"
	urlPathLoad             = "api/host/getLoad.json"
	urlPathEvents           = "api/events/consoleEvents/300%20second.json"
	urlPathMonitorFmt       = "api/monitors/%s.json"
	urlPathMonitorDaemonFmt = "api/monitors/daemonStatus/id:%s/daemon:zmc.json"
)

type rawResponse struct {
	role endpointRole
	body []byte
}

// session is an authenticated cookie context owned by a single pass.
type session struct {
	*logger.Logger

	id       string
	base     *url.URL
	reqCfg   web.RequestConfig
	proto    *http.Client
	client   *http.Client
	loggedIn bool
}

func newSession(client *http.Client, reqCfg web.RequestConfig, baseURL string, log *logger.Logger) (*session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base URL: %v", ErrConfiguration, err)
	}

	proto := *client
	if proto.CheckRedirect != nil {
		// the stateful login answers with a redirect that carries the session cookie
		proto.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}

	id := uuid.NewString()
	s := &session{
		Logger: log.With(slog.String("pass_id", id)),
		id:     id,
		base:   u,
		reqCfg: reqCfg.Copy(),
		proto:  &proto,
	}
	s.reqCfg.URL = baseURL
	s.reqCfg.Method = ""
	s.reqCfg.Body = ""

	if err := s.resetJar(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) resetJar() error {
	cl, err := web.WithCookieJar(s.proto)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	s.client = cl
	return nil
}

func (s *session) login(ctx context.Context, mode LoginMode, username, password string) error {
	switch mode {
	case LoginStateful, LoginLegacy:
		return s.loginWith(ctx, mode, username, password)
	}

	err := s.loginWith(ctx, LoginStateful, username, password)
	if !errors.Is(err, errNoSession) {
		return err
	}

	s.Debug("stateful login issued no session, retrying with legacy login")
	if err := s.resetJar(); err != nil {
		return err
	}
	return s.loginWith(ctx, LoginLegacy, username, password)
}

func (s *session) loginWith(ctx context.Context, mode LoginMode, username, password string) error {
	params := url.Values{
		"action":   {"login"},
		"view":     {"login"},
		"username": {username},
		"password": {password},
		"stateful": {"1"},
	}
	if mode == LoginLegacy {
		params.Set("view", "console")
		params.Del("stateful")
	}

	cfg := s.reqCfg.Copy()
	cfg.Method = http.MethodPost

	req, err := web.NewHTTPRequestWithPath(ctx, cfg, urlPathLogin+"?"+params.Encode())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	body, err := web.DoHTTP(s.client).
		WithStatusCodeValidator(func(code int) bool { return code < 400 }).
		RequestBytes(req)
	if err != nil {
		return fmt.Errorf("%w: login: %w", ErrTransport, err)
	}

	if bytes.Contains(body, []byte(invalidCredentialsMarker)) {
		return fmt.Errorf("%w: %w", ErrAuthentication, errInvalidCredentials)
	}
	if len(s.client.Jar.Cookies(s.base)) == 0 {
		return fmt.Errorf("%w: %s login: %w", ErrAuthentication, mode, errNoSession)
	}

	s.loggedIn = true
	s.Debugf("logged in (%s)", mode)

	return nil
}

func (s *session) fetch(ctx context.Context, role endpointRole, urlPath string) (rawResponse, error) {
	req, err := web.NewHTTPRequestWithPath(ctx, s.reqCfg, urlPath)
	if err != nil {
		return rawResponse{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	body, err := web.DoHTTP(s.client).RequestBytes(req)
	if err != nil {
		return rawResponse{}, fmt.Errorf("%w: %s: %w", ErrTransport, role, err)
	}

	s.Debugf("fetched %s (%d bytes)", role, len(body))

	return rawResponse{role: role, body: body}, nil
}

// logout never fails the pass.
func (s *session) logout(ctx context.Context) {
	if !s.loggedIn {
		return
	}
	s.loggedIn = false

	cfg := s.reqCfg.Copy()
	cfg.Method = http.MethodPost

	req, err := web.NewHTTPRequestWithPath(ctx, cfg, urlPathLogout)
	if err != nil {
		s.Warningf("logout: %v", err)
		return
	}

	err = web.DoHTTP(s.client).
		WithStatusCodeValidator(func(code int) bool { return code < 400 }).
		Request(req, nil)
	if err != nil {
		s.Warningf("logout: %v", err)
		return
	}

	s.Debug("logged out")
}
