// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type endpoint struct {
	role endpointRole
	path string
}

func (c *Collector) collect(ctx context.Context) (map[string]int64, error) {
	snap, err := c.collectSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	mx := make(map[string]int64, len(snap))
	for _, smp := range snap {
		if smp.Kind == KindFloat {
			mx[smp.Name] = int64(math.Round(smp.Float * precision))
		} else {
			mx[smp.Name] = smp.Int
		}
	}

	return mx, nil
}

func (c *Collector) collectSnapshot(ctx context.Context) (Snapshot, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("%w: collector is not initialized", ErrConfiguration)
	}

	out, err := c.runPass(ctx)
	if err != nil {
		return nil, err
	}

	srcs := daemonSources
	if c.monitorScope() {
		srcs = monitorSources
	}
	stats := assembleStats(out, srcs)

	return reconcile(stats, c.metrics, c.Logger), nil
}

// runPass logs in, fetches every endpoint of the target scope in order and logs out.
// Any fetch failure discards what was gathered so far.
func (c *Collector) runPass(ctx context.Context) (*passOutput, error) {
	sess, err := newSession(c.httpClient, c.RequestConfig, c.baseURL, c.Logger)
	if err != nil {
		return nil, err
	}

	if err := sess.login(ctx, c.loginMode(), c.Username, c.Password); err != nil {
		return nil, err
	}
	defer sess.logout(context.WithoutCancel(ctx))

	out := newPassOutput(c.MonitorID)

	resp, err := sess.fetch(ctx, roleConsole, urlPathConsole)
	if err != nil {
		return nil, err
	}
	c.scrapeConsole(out, string(resp.body))

	if c.version == "" {
		c.detectVersion(ctx, sess)
	}

	for _, ep := range c.endpoints() {
		resp, err := sess.fetch(ctx, ep.role, ep.path)
		if err != nil {
			return nil, err
		}
		if err := out.layered.merge(resp.body); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid JSON response: %v", ErrTransport, ep.role, err)
		}
	}

	return out, nil
}

func (c *Collector) endpoints() []endpoint {
	if !c.monitorScope() {
		return []endpoint{
			{role: roleDaemonStatus, path: urlPathDaemonCheck},
			{role: roleRunState, path: urlPathStates},
			{role: roleHostLoad, path: urlPathLoad},
			{role: roleEventCount, path: urlPathEvents},
		}
	}
	return []endpoint{
		{role: roleMonitorDetail, path: fmt.Sprintf(urlPathMonitorFmt, c.MonitorID)},
		{role: roleMonitorStatus, path: fmt.Sprintf(urlPathMonitorDaemonFmt, c.MonitorID)},
		{role: roleEventCount, path: urlPathEvents},
	}
}

func (c *Collector) scrapeConsole(out *passOutput, page string) {
	if !c.monitorScope() {
		out.storage, out.hasStorage = scrapeStorage(page), true

		bw, ok, err := scrapeBandwidth(page)
		if err != nil {
			c.Debugf("console page: %v", err)
		}
		out.bandwidth, out.hasBandwidth = bw, ok
		return
	}

	online, err := scrapeOnline(page, c.MonitorID, c.markers)
	switch {
	case err == nil:
		out.online, out.hasOnline = online, true
	case errors.Is(err, errOnlineMarkerNotFound):
		c.Warningf("monitor '%s' not found in the web console: %v", c.MonitorID, err)
	default:
		c.Debugf("monitor '%s': %v", c.MonitorID, err)
	}
}

func (c *Collector) detectVersion(ctx context.Context, sess *session) {
	resp, err := sess.fetch(ctx, roleVersion, urlPathVersion)
	if err != nil {
		c.Debugf("server version is unknown: %v", err)
		return
	}

	sv, err := parseVersion(resp.body)
	if err != nil {
		c.Debugf("server version is unknown: %v", err)
		return
	}

	c.version = sv.version.String()
	if sv.apiVersion != nil {
		c.Infof("ZoneMinder version %s (API %s)", c.version, sv.apiVersion)
	} else {
		c.Infof("ZoneMinder version %s", c.version)
	}
	c.addVersionLabel(c.version)
}

func (c *Collector) monitorScope() bool {
	return c.MonitorID != ""
}
