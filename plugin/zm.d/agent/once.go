// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/discovery/file"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/jobmgr"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"

	"github.com/sourcegraph/conc/pool"
)

const defaultOnceConcurrency = 4

// TargetReport is the result of one pass against one target.
type TargetReport struct {
	Target  string         `json:"target"`
	OK      bool           `json:"ok"`
	Error   string         `json:"error,omitempty"`
	Metrics map[string]any `json:"metrics,omitempty"`
}

var errNoSnapshot = errors.New("module does not support one-shot snapshots")

// RunOnce runs a single pass for every configured job and writes one JSON report per line to w.
// It reports whether every target succeeded.
func (a *Agent) RunOnce(ctx context.Context, w io.Writer) bool {
	cfg := a.loadPluginConfig()
	if !cfg.Enabled {
		a.Info("plugin is disabled in the configuration file")
		return true
	}

	enabled := a.loadEnabledModules(cfg)
	discCfg := a.buildDiscoveryConf(enabled)
	cfgs := readConfigs(ctx, discCfg)
	if len(cfgs) == 0 {
		a.Info("no job configs found")
		return true
	}

	p := pool.NewWithResults[TargetReport]().WithMaxGoroutines(max(cfg.MaxProcs, defaultOnceConcurrency))
	for _, jc := range cfgs {
		p.Go(func() TargetReport { return snapshotTarget(ctx, enabled, jc) })
	}
	reports := p.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Target < reports[j].Target })

	allOK := true
	enc := json.NewEncoder(w)
	for _, r := range reports {
		if !r.OK {
			allOK = false
		}
		if err := enc.Encode(r); err != nil {
			a.Errorf("write report: %v", err)
			return false
		}
	}
	return allOK
}

func readConfigs(ctx context.Context, discCfg file.Config) []confgroup.Config {
	paths := append(append([]string(nil), discCfg.Read...), discCfg.Watch...)
	if len(paths) == 0 {
		return nil
	}

	in := make(chan []*confgroup.Group, 1)
	go file.NewReader(discCfg.Registry, paths).Run(ctx, in)

	cache := confgroup.NewCache()
	var cfgs []confgroup.Config
	for groups := range in {
		for _, g := range groups {
			added, _ := cache.Add(g)
			cfgs = append(cfgs, added...)
		}
	}
	return cfgs
}

func snapshotTarget(ctx context.Context, modules module.Registry, cfg confgroup.Config) TargetReport {
	report := TargetReport{Target: cfg.FullName()}

	metrics, err := snapshot(ctx, modules, cfg)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	report.OK = true
	report.Metrics = metrics
	return report
}

func snapshot(ctx context.Context, modules module.Registry, cfg confgroup.Config) (map[string]any, error) {
	mod, err := jobmgr.BuildModule(modules, cfg)
	if err != nil {
		return nil, err
	}

	mod.GetBase().Logger = logger.New().With(
		slog.String("collector", cfg.Module()),
		slog.String("job", cfg.Name()),
	)

	snap, ok := mod.(module.Snapshotter)
	if !ok {
		return nil, errNoSnapshot
	}

	if err := mod.Init(ctx); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	defer mod.Cleanup(ctx)

	return snap.Snapshot(ctx)
}
