// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/pkg/netdataapi"
)

type JobConfig struct {
	PluginName      string
	Name            string
	ModuleName      string
	FullName        string
	Module          Module
	Labels          map[string]string
	Out             io.Writer
	UpdateEvery     int
	AutoDetectEvery int
	Priority        int
}

const (
	// every penaltyStep failed runs in a row stretch the interval by half of update_every
	penaltyStep = 5
	maxPenalty  = 600

	infTries = -1
)

// maxTypeIDLen is the longest 'type.id' the host accepts for a chart.
const maxTypeIDLen = 1200

// Job drives one module: auto-detection, then one collection per due tick,
// written to Out as plugins.d text.
type Job struct {
	*logger.Logger

	pluginName string
	name       string
	moduleName string
	fullName   string

	updateEvery int
	priority    int
	labels      map[string]string

	// AutoDetectEvery is the retry interval in seconds, 0 disables retries.
	AutoDetectEvery int
	// AutoDetectTries counts remaining retries, infTries means unlimited.
	AutoDetectTries int

	module Module
	charts *Charts

	initialized bool
	panicked    bool
	retries     int
	prevRun     time.Time

	ctx    context.Context
	cancel context.CancelFunc
	tick   chan int
	stop   chan struct{}

	out io.Writer
	buf bytes.Buffer
	api *netdataapi.API
}

func NewJob(cfg JobConfig) *Job {
	if cfg.UpdateEvery <= 0 {
		cfg.UpdateEvery = UpdateEvery
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}

	ctx, cancel := context.WithCancel(context.Background())

	j := &Job{
		pluginName:      cfg.PluginName,
		name:            cfg.Name,
		moduleName:      cfg.ModuleName,
		fullName:        cfg.FullName,
		updateEvery:     cfg.UpdateEvery,
		priority:        cfg.Priority,
		labels:          cfg.Labels,
		AutoDetectEvery: cfg.AutoDetectEvery,
		AutoDetectTries: infTries,
		module:          cfg.Module,
		ctx:             ctx,
		cancel:          cancel,
		tick:            make(chan int),
		stop:            make(chan struct{}),
		out:             cfg.Out,
	}
	j.api = netdataapi.New(&j.buf)

	j.Logger = logger.New().With(
		slog.String("collector", cfg.ModuleName),
		slog.String("job", cfg.Name),
	)
	if j.module != nil {
		j.module.GetBase().Logger = j.Logger
	}

	return j
}

func (j *Job) FullName() string   { return j.fullName }
func (j *Job) ModuleName() string { return j.moduleName }
func (j *Job) Name() string       { return j.name }
func (j *Job) Panicked() bool     { return j.panicked }

func (j *Job) AutoDetectionEvery() int { return j.AutoDetectEvery }

func (j *Job) RetryAutoDetection() bool {
	if j.AutoDetectEvery <= 0 {
		return false
	}
	return j.AutoDetectTries == infTries || j.AutoDetectTries > 0
}

func (j *Job) Configuration() any { return j.module.Configuration() }

// AutoDetection runs Init (once), Check and chart validation. On failure the
// module is cleaned up; an Init failure, a panic or bad charts also disable
// further retries.
func (j *Job) AutoDetection() (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.panicked = true
			j.AutoDetectEvery = 0
			err = fmt.Errorf("panic %v", r)
			j.logPanic(r)
		}
		if err != nil {
			j.module.Cleanup(j.ctx)
		}
	}()

	if err := j.init(); err != nil {
		j.Errorf("init failed: %v", err)
		j.AutoDetectEvery = 0
		return err
	}
	if err := j.check(); err != nil {
		j.Errorf("check failed: %v", err)
		return err
	}
	j.Info("check success")

	if err := j.postCheck(); err != nil {
		j.Errorf("postCheck failed: %v", err)
		j.AutoDetectEvery = 0
		return err
	}
	return nil
}

// Tick hands the clock to the job loop. A tick is dropped while the previous
// collection is still running.
func (j *Job) Tick(clock int) {
	select {
	case j.tick <- clock:
	default:
		j.Debug("previous collection still running, tick skipped")
	}
}

// Start runs the job loop until Stop.
func (j *Job) Start() {
	j.Infof("started, data collection interval %ds", j.updateEvery)
	defer j.Info("stopped")

	for {
		select {
		case <-j.stop:
			j.Cleanup()
			j.stop <- struct{}{}
			return
		case clock := <-j.tick:
			if clock%(j.updateEvery+j.penalty()) == 0 {
				j.runOnce()
			}
		}
	}
}

// Stop cancels an in-flight collection and blocks until Start returns.
func (j *Job) Stop() {
	j.cancel()
	j.stop <- struct{}{}
	<-j.stop
}

// Cleanup releases the module and obsoletes every chart that was sent.
func (j *Job) Cleanup() {
	j.module.Cleanup(context.Background())

	if j.charts == nil {
		return
	}
	j.buf.Reset()
	for _, chart := range *j.charts {
		if chart.created {
			chart.markRemove()
			j.sendChart(chart)
		}
	}
	j.flush()
}

func (j *Job) init() error {
	if j.initialized {
		return nil
	}
	if err := j.module.Init(j.ctx); err != nil {
		return err
	}
	j.initialized = true
	return nil
}

func (j *Job) check() error {
	err := j.module.Check(j.ctx)
	if err != nil && j.AutoDetectTries != infTries {
		j.AutoDetectTries--
	}
	return err
}

func (j *Job) postCheck() error {
	j.charts = j.module.Charts()
	if j.charts == nil {
		return errors.New("nil charts")
	}
	return j.charts.validate()
}

func (j *Job) runOnce() {
	now := time.Now()
	var sinceLast int
	if !j.prevRun.IsZero() {
		sinceLast = int(now.Sub(j.prevRun).Microseconds())
	}
	j.prevRun = now

	mx := j.collect()
	if j.panicked {
		return
	}

	if j.emit(mx, sinceLast) {
		j.retries = 0
	} else {
		j.retries++
	}
	j.flush()
}

func (j *Job) collect() (mx map[string]int64) {
	j.panicked = false
	defer func() {
		if r := recover(); r != nil {
			j.panicked = true
			j.logPanic(r)
		}
	}()
	return j.module.Collect(j.ctx)
}

// emit sends pending chart definitions, then one BEGIN/SET/END block per live
// chart. An empty mx is a failed pass and produces no data blocks.
func (j *Job) emit(mx map[string]int64, sinceLast int) bool {
	live := (*j.charts)[:0]
	var updated bool

	for _, chart := range *j.charts {
		if !chart.created {
			if n := len(j.fullName) + 1 + len(chart.ID); n >= maxTypeIDLen {
				j.Warningf("chart '%s.%s' ID is too long (%d >= %d), chart ignored", j.fullName, chart.ID, n, maxTypeIDLen)
				chart.markRemove()
				continue
			}
			j.sendChart(chart)
		}
		if chart.remove {
			continue
		}
		live = append(live, chart)

		if len(mx) > 0 && !chart.Obsolete && j.sendValues(chart, mx, sinceLast) {
			updated = true
		}
	}
	*j.charts = live

	return updated
}

func (j *Job) sendChart(chart *Chart) {
	chart.created = true

	if chart.Priority == 0 {
		chart.Priority = j.priority
		j.priority++
	}

	j.api.CHART(netdataapi.ChartOpts{
		TypeID:      j.fullName,
		ID:          chart.ID,
		Title:       chart.Title,
		Units:       chart.Units,
		Family:      chart.Fam,
		Context:     chart.Ctx,
		ChartType:   chart.Type.String(),
		Priority:    chart.Priority,
		UpdateEvery: j.updateEvery,
		Options:     chart.options(),
		Plugin:      j.pluginName,
		Module:      j.moduleName,
	})
	if chart.Obsolete {
		_ = j.api.EMPTYLINE()
		return
	}

	set := make(map[string]bool, len(chart.Labels))
	for _, l := range chart.Labels {
		if l.Key == "" {
			continue
		}
		set[l.Key] = true
		src := l.Source
		if src == 0 {
			src = LabelSourceAuto
		}
		j.api.CLABEL(l.Key, stripQuotes(l.Value), src)
	}
	for k, v := range j.labels {
		if !set[k] {
			j.api.CLABEL(k, stripQuotes(v), LabelSourceConf)
		}
	}
	j.api.CLABEL("_collect_job", stripQuotes(j.name), LabelSourceAuto)
	j.api.CLABELCOMMIT()

	for _, dim := range chart.Dims {
		j.api.DIMENSION(netdataapi.DimensionOpts{
			ID:         dim.ID,
			Name:       dim.Name,
			Algorithm:  dim.Algo.String(),
			Multiplier: orOne(dim.Mul),
			Divisor:    orOne(dim.Div),
			Options:    dim.options(),
		})
	}
	_ = j.api.EMPTYLINE()
}

// sendValues writes one data block. Dims missing from mx are sent as gaps.
func (j *Job) sendValues(chart *Chart, mx map[string]int64, sinceLast int) bool {
	if !chart.updated {
		sinceLast = 0
	}

	j.api.BEGIN(j.fullName, chart.ID, sinceLast)
	var n int
	for _, dim := range chart.Dims {
		v, ok := mx[dim.ID]
		if !ok {
			j.api.SETEMPTY(dim.ID)
			continue
		}
		j.api.SET(dim.ID, v)
		n++
	}
	j.api.END()

	chart.updated = n > 0
	return chart.updated
}

func (j *Job) flush() {
	if j.buf.Len() > 0 {
		_, _ = j.out.Write(j.buf.Bytes())
	}
	j.buf.Reset()
}

func (j *Job) penalty() int {
	v := j.retries / penaltyStep * penaltyStep * j.updateEvery / 2
	return min(v, maxPenalty)
}

func (j *Job) logPanic(r any) {
	j.Errorf("PANIC: %v", r)
	if logger.Level.Enabled(slog.LevelDebug) {
		j.Errorf("STACK: %s", debug.Stack())
	}
}

func orOne(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

var stripQuotes = strings.NewReplacer("'", "").Replace
