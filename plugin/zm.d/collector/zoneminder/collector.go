// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zmwatch/zmwatch/pkg/confopt"
	"github.com/zmwatch/zmwatch/pkg/web"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
)

//go:embed "config_schema.json"
var configSchema string

func init() {
	module.Register("zoneminder", module.Creator{
		Defaults: module.Defaults{
			UpdateEvery: 60,
		},
		Create: func() module.Module { return New() },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			HTTPConfig: web.HTTPConfig{
				ClientConfig: web.ClientConfig{
					Timeout: confopt.Duration(time.Second * 10),
				},
			},
			Path:      "/zm/",
			LoginMode: LoginAuto,
		},
	}
}

type Config struct {
	UpdateEvery int    `yaml:"update_every,omitempty" json:"update_every"`
	Name        string `yaml:"name,omitempty" json:"name"`

	web.HTTPConfig `yaml:",inline" json:""`

	Username      string         `yaml:"username" json:"username"`
	Password      string         `yaml:"password" json:"password"`
	Hostname      string         `yaml:"hostname,omitempty" json:"hostname"`
	Port          int            `yaml:"port,omitempty" json:"port"`
	Path          string         `yaml:"path,omitempty" json:"path"`
	TLS           bool           `yaml:"tls,omitempty" json:"tls"`
	MonitorID     string         `yaml:"monitor_id,omitempty" json:"monitor_id"`
	LoginMode     LoginMode      `yaml:"login_mode,omitempty" json:"login_mode"`
	Metrics       []MetricPoint  `yaml:"metrics,omitempty" json:"metrics"`
	OnlineMarkers []OnlineMarker `yaml:"online_markers,omitempty" json:"online_markers"`
}

type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	charts *module.Charts

	httpClient *http.Client

	baseURL string
	metrics []MetricPoint
	markers []OnlineMarker
	version string
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if err := c.validateConfig(); err != nil {
		return err
	}

	baseURL, err := resolveBaseURL(urlParts{
		override: c.URL,
		name:     c.Name,
		hostname: c.Hostname,
		port:     c.Port,
		path:     c.Path,
		tls:      c.TLS,
	})
	if err != nil {
		return err
	}
	c.baseURL = baseURL

	c.metrics = c.initMetricPoints()
	c.markers = c.OnlineMarkers
	if len(c.markers) == 0 {
		c.markers = defaultOnlineMarkers
	}

	charts, err := newCharts(c.metrics, c.MonitorID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	c.charts = charts

	httpClient, err := web.NewHTTPClient(c.ClientConfig)
	if err != nil {
		return fmt.Errorf("%w: failed initializing http client: %v", ErrConfiguration, err)
	}
	c.httpClient = httpClient

	c.Debugf("using base URL %s", c.baseURL)
	c.Debugf("using API URL %s", apiURL(c.baseURL))
	c.Debugf("using timeout: %s", c.Timeout)

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	mx, err := c.collect(ctx)
	if err != nil {
		return err
	}

	if len(mx) == 0 {
		return errors.New("no metrics collected")
	}

	return nil
}

func (c *Collector) Charts() *module.Charts {
	return c.charts
}

func (c *Collector) Collect(ctx context.Context) map[string]int64 {
	mx, err := c.collect(ctx)
	if err != nil {
		c.Error(err)
	}

	if len(mx) == 0 {
		return nil
	}
	return mx
}

// CollectSnapshot runs one pass and returns the declared metrics with their kinds.
func (c *Collector) CollectSnapshot(ctx context.Context) (Snapshot, error) {
	return c.collectSnapshot(ctx)
}

func (c *Collector) Snapshot(ctx context.Context) (map[string]any, error) {
	snap, err := c.collectSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Values(), nil
}

func (c *Collector) Cleanup(context.Context) {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
