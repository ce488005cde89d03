// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sourcegraph/conc"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/pkg/multipath"
	"github.com/zmwatch/zmwatch/pkg/netdataapi"
	"github.com/zmwatch/zmwatch/pkg/safewriter"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/discovery/file"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/filelock"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/jobmgr"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
)

var isTerminal = isatty.IsTerminal(os.Stdout.Fd())

type Config struct {
	Name                 string
	ConfDir              []string
	ModulesConfDir       []string
	ModulesConfWatchPath []string
	LockDir              string
	ModuleRegistry       module.Registry
	RunModule            string
	MinUpdateEvery       int
}

// Agent runs the plugin: reads the plugin config, discovers job configs and
// hands them to the job manager.
type Agent struct {
	*logger.Logger

	Name                 string
	ConfDir              multipath.MultiPath
	ModulesConfDir       multipath.MultiPath
	ModulesConfWatchPath []string
	LockDir              string
	RunModule            string
	MinUpdateEvery       int
	ModuleRegistry       module.Registry
	Out                  io.Writer

	api *netdataapi.API
}

// New falls back to module.DefaultRegistry when cfg has no registry.
func New(cfg Config) *Agent {
	reg := cfg.ModuleRegistry
	if reg == nil {
		reg = module.DefaultRegistry
	}

	return &Agent{
		Logger: logger.New().With(
			slog.String("component", "agent"),
		),
		Name:                 cfg.Name,
		ConfDir:              multipath.New(cfg.ConfDir...),
		ModulesConfDir:       multipath.New(cfg.ModulesConfDir...),
		ModulesConfWatchPath: cfg.ModulesConfWatchPath,
		LockDir:              cfg.LockDir,
		RunModule:            cfg.RunModule,
		MinUpdateEvery:       cfg.MinUpdateEvery,
		ModuleRegistry:       reg,
		Out:                  safewriter.Stdout,
		api:                  netdataapi.New(safewriter.Stdout),
	}
}

// Run blocks until SIGINT or SIGTERM. SIGHUP stops all jobs and starts over
// with freshly read configuration.
func (a *Agent) Run() {
	go a.keepAlive()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() { defer close(done); a.run(ctx) }()

		sig := <-sigs
		reload := sig == syscall.SIGHUP
		if reload {
			a.Infof("got %s, reloading", sig)
		} else {
			a.Infof("got %s, shutting down", sig)
		}
		cancel()

		select {
		case <-done:
		case <-time.After(stopTimeout):
			a.Errorf("jobs did not stop within %s, exiting", stopTimeout)
			return
		}
		if !reload {
			return
		}
		time.Sleep(time.Second)
	}
}

const stopTimeout = 10 * time.Second

func (a *Agent) run(ctx context.Context) {
	a.Info("starting")
	defer a.Info("stopped")

	cfg := a.loadPluginConfig()
	a.Infof("plugin config: %s", cfg.String())

	if !cfg.Enabled {
		a.Info("disabled in the plugin config")
		a.disable()
		return
	}

	enabled := a.loadEnabledModules(cfg)
	if len(enabled) == 0 {
		a.Info("no enabled modules")
		a.disable()
		return
	}

	discCfg := a.buildDiscoveryConf(enabled)
	if len(discCfg.Read)+len(discCfg.Watch) == 0 {
		a.Info("no job config files found")
		a.disable()
		return
	}

	discovery, err := file.NewDiscovery(discCfg)
	if err != nil {
		a.Errorf("config discovery: %v", err)
		return
	}

	mgr := jobmgr.New()
	mgr.PluginName = a.Name
	mgr.Out = a.Out
	mgr.Modules = enabled
	if cfg.MaxProcs > 0 {
		mgr.MaxDetections = cfg.MaxProcs
	}
	if a.LockDir != "" {
		locker := filelock.New(a.LockDir)
		defer locker.UnlockAll()
		mgr.FileLock = locker
	}

	groups := make(chan []*confgroup.Group)

	var wg conc.WaitGroup
	wg.Go(func() { mgr.Run(ctx, groups) })
	wg.Go(func() { discovery.Run(ctx, groups) })
	wg.Wait()
}

// disable asks the host not to restart the plugin. Skipped on a terminal.
func (a *Agent) disable() {
	if !isTerminal {
		a.api.DISABLE()
	}
}

// keepAlive writes an empty line every second so the host sees the plugin is
// alive. Three write failures in a row mean stdout is gone.
func (a *Agent) keepAlive() {
	if isTerminal {
		return
	}

	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	var failures int
	for range tk.C {
		if err := a.api.EMPTYLINE(); err != nil {
			failures++
			a.Warningf("writing to stdout: %v", err)
		} else {
			failures = 0
		}
		if failures >= 3 {
			a.Error("stdout is not writable, exiting")
			os.Exit(0)
		}
	}
}
