// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"strings"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
)

const precision = 1000

const (
	prioDaemonStatus = module.Priority + iota
	prioRunState
	prioLoad
	prioStorageUsage
	prioCaptureBandwidth
	prioEvents

	prioMonitorOnline
	prioMonitorEnabled
	prioMonitorStatus
	prioMonitorFPS
	prioMonitorBandwidth
	prioMonitorEvents

	prioCustomMetric
)

var (
	daemonStatusChart = module.Chart{
		ID:       "daemon_status",
		Title:    "ZoneMinder Daemon Status",
		Units:    "status",
		Fam:      "daemon",
		Ctx:      "zoneminder.daemon_status",
		Priority: prioDaemonStatus,
	}
	runStateChart = module.Chart{
		ID:       "run_state",
		Title:    "Active Run State",
		Units:    "state",
		Fam:      "daemon",
		Ctx:      "zoneminder.run_state",
		Priority: prioRunState,
	}
	loadChart = module.Chart{
		ID:       "load",
		Title:    "Server Load Average",
		Units:    "load",
		Fam:      "host",
		Ctx:      "zoneminder.load",
		Priority: prioLoad,
	}
	storageUsageChart = module.Chart{
		ID:       "storage_usage",
		Title:    "Storage Utilization",
		Units:    "percentage",
		Fam:      "host",
		Ctx:      "zoneminder.storage_usage",
		Priority: prioStorageUsage,
	}
	captureBandwidthChart = module.Chart{
		ID:       "capture_bandwidth",
		Title:    "Total Capture Bandwidth",
		Units:    "bytes/s",
		Fam:      "capture",
		Ctx:      "zoneminder.capture_bandwidth",
		Type:     module.Area,
		Priority: prioCaptureBandwidth,
	}
	eventsChart = module.Chart{
		ID:       "events",
		Title:    "Events in the Last 5 Minutes",
		Units:    "events",
		Fam:      "events",
		Ctx:      "zoneminder.events",
		Priority: prioEvents,
	}

	monitorOnlineChart = module.Chart{
		ID:       "monitor_online",
		Title:    "Monitor Online State",
		Units:    "state",
		Fam:      "monitor",
		Ctx:      "zoneminder.monitor_online",
		Priority: prioMonitorOnline,
	}
	monitorEnabledChart = module.Chart{
		ID:       "monitor_enabled",
		Title:    "Monitor Enabled",
		Units:    "status",
		Fam:      "monitor",
		Ctx:      "zoneminder.monitor_enabled",
		Priority: prioMonitorEnabled,
	}
	monitorStatusChart = module.Chart{
		ID:       "monitor_capture_status",
		Title:    "Monitor Capture Daemon Connected",
		Units:    "status",
		Fam:      "monitor",
		Ctx:      "zoneminder.monitor_capture_status",
		Priority: prioMonitorStatus,
	}
	monitorFPSChart = module.Chart{
		ID:       "monitor_fps",
		Title:    "Monitor Frame Rate",
		Units:    "fps",
		Fam:      "monitor",
		Ctx:      "zoneminder.monitor_fps",
		Priority: prioMonitorFPS,
	}
	monitorBandwidthChart = module.Chart{
		ID:       "monitor_capture_bandwidth",
		Title:    "Monitor Capture Bandwidth",
		Units:    "bytes/s",
		Fam:      "monitor",
		Ctx:      "zoneminder.monitor_capture_bandwidth",
		Type:     module.Area,
		Priority: prioMonitorBandwidth,
	}
	monitorEventsChart = module.Chart{
		ID:       "monitor_events",
		Title:    "Monitor Events in the Last 5 Minutes",
		Units:    "events",
		Fam:      "events",
		Ctx:      "zoneminder.monitor_events",
		Priority: prioMonitorEvents,
	}
)

var daemonMetricCharts = map[string]*module.Chart{
	"result":    &daemonStatusChart,
	"state":     &runStateChart,
	"load-1":    &loadChart,
	"load-5":    &loadChart,
	"load-15":   &loadChart,
	"disk":      &storageUsageChart,
	"devshm":    &storageUsageChart,
	"bandwidth": &captureBandwidthChart,
	"events":    &eventsChart,
}

var monitorMetricCharts = map[string]*module.Chart{
	"online":           &monitorOnlineChart,
	"enabled":          &monitorEnabledChart,
	"status":           &monitorStatusChart,
	"CaptureFPS":       &monitorFPSChart,
	"AnalysisFPS":      &monitorFPSChart,
	"CaptureBandwidth": &monitorBandwidthChart,
	"events":           &monitorEventsChart,
}

func newCharts(points []MetricPoint, monitorID string) (*module.Charts, error) {
	known := daemonMetricCharts
	if monitorID != "" {
		known = monitorMetricCharts
	}

	charts := &module.Charts{}

	for _, p := range points {
		proto, ok := known[p.Name]
		if !ok {
			proto = customMetricChart(p.Name)
		}

		chart := charts.Get(proto.ID)
		if chart == nil {
			chart = proto.Copy()
			if monitorID != "" {
				chart.SetLabel("monitor_id", monitorID)
			}
			if err := charts.Add(chart); err != nil {
				return nil, err
			}
		}

		dim := &module.Dim{ID: p.Name, Name: p.Name}
		if p.kind() == KindFloat {
			dim.Div = precision
		}
		if err := chart.AddDim(dim); err != nil {
			return nil, err
		}
	}

	return charts, nil
}

func customMetricChart(name string) *module.Chart {
	id := "metric_" + cleanChartID(name)
	return &module.Chart{
		ID:       id,
		Title:    "ZoneMinder " + name,
		Units:    "value",
		Fam:      "custom",
		Ctx:      "zoneminder." + id,
		Priority: prioCustomMetric,
	}
}

func cleanChartID(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '\'', '"', '\t':
			return '_'
		}
		return r
	}, s)
}

func (c *Collector) addVersionLabel(version string) {
	for _, chart := range *c.charts {
		chart.SetLabel("zm_version", version)
	}
}
