// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/net/http/httpproxy"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/pkg/buildinfo"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent"
	"github.com/zmwatch/zmwatch/plugin/zm.d/cli"
	_ "github.com/zmwatch/zmwatch/plugin/zm.d/collector"
)

const pluginName = "zmwatch"

var (
	cd, _       = os.Getwd()
	zmConfigDir = os.Getenv("ZMWATCH_CONFIG_DIR")
	zmLockDir   = os.Getenv("ZMWATCH_LOCK_DIR")
)

func confDir(opts *cli.Option) []string {
	if len(opts.ConfDir) > 0 {
		return opts.ConfDir
	}
	if zmConfigDir != "" {
		return []string{zmConfigDir}
	}
	return []string{
		"/etc/zmwatch",
		"~/.zmwatch",
		filepath.Join(cd, "config"),
	}
}

func modulesConfDir(opts *cli.Option) []string {
	var dirs []string
	for _, dir := range confDir(opts) {
		dirs = append(dirs, filepath.Join(dir, "zm.d"))
	}
	return dirs
}

func watchPaths(opts *cli.Option) []string {
	if len(opts.WatchPath) > 0 {
		return opts.WatchPath
	}
	if zmConfigDir == "" {
		return nil
	}
	return []string{filepath.Join(zmConfigDir, "zm.d", "*.conf")}
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("%s.plugin, version: %s\n", pluginName, buildinfo.Version)
		return
	}

	if lvl := logger.EnvLevel(); lvl != "" {
		logger.Level.SetByName(lvl)
	}
	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	lockDir := opts.LockDir
	if lockDir == "" {
		lockDir = zmLockDir
	}

	a := agent.New(agent.Config{
		Name:                 pluginName,
		ConfDir:              confDir(opts),
		ModulesConfDir:       modulesConfDir(opts),
		ModulesConfWatchPath: watchPaths(opts),
		LockDir:              lockDir,
		RunModule:            opts.Module,
		MinUpdateEvery:       opts.UpdateEvery,
	})

	a.Infof("plugin: name=%s, %s", a.Name, buildinfo.Info())
	if u, err := user.Current(); err == nil {
		a.Debugf("current user: name=%s, uid=%s", u.Username, u.Uid)
	}

	proxyCfg := httpproxy.FromEnvironment()
	a.Infof("env HTTP_PROXY '%s', HTTPS_PROXY '%s'", proxyCfg.HTTPProxy, proxyCfg.HTTPSProxy)
	a.Infof("directories → config: %s | modules: %s", a.ConfDir, a.ModulesConfDir)

	if opts.Once {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		ok := a.RunOnce(ctx, os.Stdout)
		stop()
		if !ok {
			os.Exit(1)
		}
		return
	}

	a.Run()
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(pluginName, os.Args)
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	return opt
}

func init() {
	// a TZ of the form ":/etc/localtime" breaks time.LoadLocation
	if v := os.Getenv("TZ"); strings.HasPrefix(v, ":") {
		_ = os.Unsetenv("TZ")
	}
}
