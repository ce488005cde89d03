// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"fmt"
)

func (c *Collector) validateConfig() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w: 'username' and 'password' are required", ErrConfiguration)
	}
	switch c.LoginMode {
	case "", LoginAuto, LoginStateful, LoginLegacy:
	default:
		return fmt.Errorf("%w: unknown login mode '%s'", ErrConfiguration, c.LoginMode)
	}
	for _, m := range c.Metrics {
		if m.Name == "" {
			return fmt.Errorf("%w: metric with empty name", ErrConfiguration)
		}
		switch m.Kind {
		case "", KindInt, KindFloat:
		default:
			return fmt.Errorf("%w: metric '%s': unknown kind '%s'", ErrConfiguration, m.Name, m.Kind)
		}
	}
	return nil
}

func (c *Collector) initMetricPoints() []MetricPoint {
	if len(c.Metrics) == 0 {
		return defaultMetricPoints(c.MonitorID != "")
	}
	points := make([]MetricPoint, len(c.Metrics))
	for i, m := range c.Metrics {
		points[i] = MetricPoint{Name: m.Name, Kind: m.kind()}
	}
	return points
}

func (c *Collector) loginMode() LoginMode {
	if c.LoginMode == "" {
		return LoginAuto
	}
	return c.LoginMode
}
