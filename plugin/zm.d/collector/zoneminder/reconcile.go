// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/zmwatch/zmwatch/logger"
)

type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
)

// gaugeType marks a sample as an instantaneous reading.
const gaugeType = "N"

// MetricPoint is a declared metric: its name in the stats and the numeric kind it is reported as.
type MetricPoint struct {
	Name string `yaml:"name" json:"name"`
	Kind Kind   `yaml:"kind,omitempty" json:"kind,omitempty"`
}

func (m MetricPoint) kind() Kind {
	switch m.Kind {
	case KindInt, KindFloat:
		return m.Kind
	}
	if strings.HasPrefix(m.Name, "load-") || strings.HasSuffix(m.Name, "FPS") {
		return KindFloat
	}
	return KindInt
}

var (
	defaultDaemonMetrics = []string{
		"result", "state", "load-1", "load-5", "load-15", "disk", "devshm", "bandwidth", "events",
	}
	defaultMonitorMetrics = []string{
		"online", "enabled", "status", "events", "CaptureFPS", "AnalysisFPS", "CaptureBandwidth",
	}
)

func defaultMetricPoints(monitorScope bool) []MetricPoint {
	names := defaultDaemonMetrics
	if monitorScope {
		names = defaultMonitorMetrics
	}
	points := make([]MetricPoint, 0, len(names))
	for _, name := range names {
		points = append(points, MetricPoint{Name: name})
	}
	return points
}

type (
	Sample struct {
		Name  string  `json:"name"`
		Kind  Kind    `json:"kind"`
		Int   int64   `json:"int,omitempty"`
		Float float64 `json:"float,omitempty"`
		Type  string  `json:"type"`
	}
	// Snapshot is the result of one pass, ordered as the metrics were declared.
	Snapshot []Sample
)

func (s Sample) Value() any {
	if s.Kind == KindFloat {
		return s.Float
	}
	return s.Int
}

func (s Snapshot) Values() map[string]any {
	m := make(map[string]any, len(s))
	for _, smp := range s {
		m[smp.Name] = smp.Value()
	}
	return m
}

// statsMap maps a logical metric name to the raw scalar collected for it.
type statsMap map[string]any

// passOutput is everything a pass gathered before reconciliation.
type passOutput struct {
	monitorID string
	layered   layeredOutput

	storage      storageStats
	hasStorage   bool
	bandwidth    float64
	hasBandwidth bool
	online       int
	hasOnline    bool
}

func newPassOutput(monitorID string) *passOutput {
	return &passOutput{monitorID: monitorID, layered: make(layeredOutput)}
}

// A statSource writes the stats it derives from a pass output. Sources run by ascending precedence,
// so a later source overwrites what an earlier one wrote under the same name.
type statSource struct {
	name       string
	precedence int
	apply      func(out *passOutput, stats statsMap)
}

func orderedSources(srcs []statSource) []statSource {
	res := append([]statSource(nil), srcs...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].precedence < res[j].precedence })
	return res
}

var daemonSources = []statSource{
	{name: "result", precedence: 10, apply: func(out *passOutput, stats statsMap) {
		stats["result"] = "0"
		if v := out.layered.get("result"); v.Exists() {
			stats["result"] = scalar(v)
		}
	}},
	{name: "state", precedence: 20, apply: func(out *passOutput, stats statsMap) {
		if v, ok := parseActiveState(out.layered.get("states")); ok {
			stats["state"] = v
		}
	}},
	{name: "load", precedence: 30, apply: func(out *passOutput, stats statsMap) {
		if v, ok := parseLoad(out.layered.get("load")); ok {
			stats["load-1"], stats["load-5"], stats["load-15"] = v[0], v[1], v[2]
		}
	}},
	{name: "console", precedence: 40, apply: func(out *passOutput, stats statsMap) {
		if out.hasStorage {
			stats["disk"], stats["devshm"] = out.storage.disk, out.storage.devshm
		}
	}},
	{name: "bandwidth", precedence: 50, apply: func(out *passOutput, stats statsMap) {
		if out.hasBandwidth {
			stats["bandwidth"] = out.bandwidth
		}
	}},
	{name: "events", precedence: 60, apply: applyEvents},
}

var monitorSources = []statSource{
	{name: "online", precedence: 10, apply: func(out *passOutput, stats statsMap) {
		if out.hasOnline {
			stats["online"] = out.online
		}
	}},
	{name: "monitor.enabled", precedence: 20, apply: func(out *passOutput, stats statsMap) {
		mon := out.layered.get("monitor.Monitor")
		if mon.IsObject() && len(mon.Map()) > 0 {
			stats["enabled"] = "0"
			if v := mon.Get("Enabled"); v.Exists() {
				stats["enabled"] = scalar(v)
			}
		}
	}},
	{name: "monitor.fps-1.30", precedence: 30, apply: func(out *passOutput, stats statsMap) {
		mon := out.layered.get("monitor.Monitor")
		for _, key := range []string{"CaptureFPS", "AnalysisFPS"} {
			if v := mon.Get(key); v.Exists() {
				stats[key] = scalar(v)
			}
		}
	}},
	{name: "monitor.status-1.32", precedence: 40, apply: func(out *passOutput, stats statsMap) {
		out.layered.get("monitor.Monitor_Status").ForEach(func(k, v gjson.Result) bool {
			stats[k.String()] = scalar(v)
			return true
		})
	}},
	{name: "status-1.30", precedence: 50, apply: func(out *passOutput, stats statsMap) {
		stats["status"] = boolToInt(truthy(out.layered.get("status")))
	}},
	{name: "status-1.32", precedence: 60, apply: func(out *passOutput, stats statsMap) {
		s, _ := stats["Status"].(string)
		stats["status"] = boolToInt(s == "Connected")
	}},
	{name: "events", precedence: 70, apply: applyEvents},
}

func applyEvents(out *passOutput, stats statsMap) {
	stats["events"] = parseEvents(out.layered.get("results"), out.monitorID)
}

func assembleStats(out *passOutput, srcs []statSource) statsMap {
	stats := make(statsMap)
	for _, src := range orderedSources(srcs) {
		src.apply(out, stats)
	}
	return stats
}

// reconcile projects stats onto the declared metrics. Absent metrics and values that
// cannot be coerced to the declared kind are skipped.
func reconcile(stats statsMap, points []MetricPoint, log *logger.Logger) Snapshot {
	snap := make(Snapshot, 0, len(points))

	for _, p := range points {
		raw, ok := stats[p.Name]
		if !ok {
			continue
		}

		smp := Sample{Name: p.Name, Kind: p.kind(), Type: gaugeType}
		switch smp.Kind {
		case KindFloat:
			v, ok := coerceFloat(raw)
			if !ok {
				log.Debugf("metric '%s': can not convert '%v' to float, skipping", p.Name, raw)
				continue
			}
			smp.Float = v
		default:
			v, ok := coerceInt(raw)
			if !ok {
				log.Debugf("metric '%s': can not convert '%v' to int, skipping", p.Name, raw)
				continue
			}
			smp.Int = v
		}
		snap = append(snap, smp)
	}

	return snap
}

func coerceInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case bool:
		return boolToInt(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func coerceFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		return float64(boolToInt(v)), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
