// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/discovery/file"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"

	"gopkg.in/yaml.v2"
)

func (a *Agent) loadPluginConfig() config {
	a.Info("loading config file")

	if len(a.ConfDir) == 0 {
		a.Info("config dir not provided, will use defaults")
		return defaultConfig()
	}

	cfgPath := a.Name + ".conf"
	a.Debugf("looking for '%s' in %v", cfgPath, a.ConfDir)

	path, err := a.ConfDir.Find(cfgPath)
	if err != nil || path == "" {
		a.Warning("couldn't find config, will use defaults")
		return defaultConfig()
	}
	a.Infof("found '%s'", path)

	cfg := defaultConfig()
	if err := loadYAML(&cfg, path); err != nil {
		a.Warningf("couldn't load config '%s': %v, will use defaults", path, err)
		return defaultConfig()
	}
	a.Info("config successfully loaded")
	return cfg
}

func (a *Agent) loadEnabledModules(cfg config) module.Registry {
	a.Info("loading modules")

	all := a.RunModule == "all" || a.RunModule == ""
	enabled := module.Registry{}

	for _, name := range a.ModuleRegistry.Names() {
		creator := a.ModuleRegistry[name]
		if !all && !isRequested(a.RunModule, name) {
			continue
		}
		if all {
			if creator.Disabled && !cfg.isExplicitlyEnabled(name) {
				a.Infof("'%s' module disabled by default, should be explicitly enabled in the config", name)
				continue
			}
			if !cfg.isImplicitlyEnabled(name) {
				a.Infof("'%s' module disabled in the config file", name)
				continue
			}
		}
		enabled[name] = creator
	}

	a.Infof("enabled/registered modules: %d/%d", len(enabled), len(a.ModuleRegistry))
	return enabled
}

func (a *Agent) buildDiscoveryConf(enabled module.Registry) file.Config {
	a.Info("building discovery config")

	reg := confgroup.NewRegistry(enabled, a.MinUpdateEvery)

	var readPaths []string

	for name := range enabled {
		cfgPath := name + ".conf"
		a.Debugf("looking for '%s' in %v", cfgPath, a.ModulesConfDir)

		path, err := a.ModulesConfDir.Find(cfgPath)
		if err != nil {
			a.Infof("couldn't find '%s' module config, no jobs for it", name)
			continue
		}
		a.Debugf("found '%s'", path)
		readPaths = append(readPaths, path)
	}

	a.Infof("read/watch paths: %d/%d", len(readPaths), len(a.ModulesConfWatchPath))

	return file.Config{
		Registry: reg,
		Read:     readPaths,
		Watch:    a.ModulesConfWatchPath,
	}
}

func isRequested(runModule, name string) bool {
	for _, v := range strings.Split(runModule, ",") {
		if strings.TrimSpace(v) == name {
			return true
		}
	}
	return false
}

func loadYAML(conf any, path string) error {
	bs, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	if len(bs) == 0 {
		return nil
	}
	return yaml.Unmarshal(bs, conf)
}
