// SPDX-License-Identifier: GPL-3.0-or-later

package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"

	"gopkg.in/yaml.v2"
)

type (
	// staticConfig is a per-module file: optional defaults plus a 'jobs' list.
	// The module name comes from the file name.
	staticConfig struct {
		confgroup.Default `yaml:",inline"`
		Jobs              []confgroup.Config `yaml:"jobs"`
	}
	// sdConfig is a plain list of jobs, each naming its module.
	sdConfig []confgroup.Config
)

type format int

const (
	unknownFormat format = iota
	emptyFormat
	staticFormat
	sdFormat
)

func parse(reg confgroup.Registry, path string) (*confgroup.Group, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch detectFormat(bs) {
	case staticFormat:
		return parseStatic(reg, path, bs)
	case sdFormat:
		return parseSD(reg, path, bs)
	case emptyFormat:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown file format: '%s'", path)
	}
}

func parseStatic(reg confgroup.Registry, path string, bs []byte) (*confgroup.Group, error) {
	name := moduleName(path)
	modDef, ok := reg.Lookup(name)
	if !ok {
		return nil, nil
	}

	var modCfg staticConfig
	if err := yaml.Unmarshal(bs, &modCfg); err != nil {
		return nil, err
	}

	def := mergeDef(modCfg.Default, modDef)
	for _, cfg := range modCfg.Jobs {
		cfg.SetModule(name)
		cfg.ApplyDefaults(def)
	}

	return &confgroup.Group{Configs: modCfg.Jobs, Source: path}, nil
}

func parseSD(reg confgroup.Registry, path string, bs []byte) (*confgroup.Group, error) {
	var cfgs sdConfig
	if err := yaml.Unmarshal(bs, &cfgs); err != nil {
		return nil, err
	}

	var i int
	for _, cfg := range cfgs {
		def, ok := reg.Lookup(cfg.Module())
		if !ok || cfg.Module() == "" {
			continue
		}
		cfg.ApplyDefaults(def)
		cfgs[i] = cfg
		i++
	}

	return &confgroup.Group{Configs: cfgs[:i], Source: path}, nil
}

func detectFormat(bs []byte) format {
	var data any
	if err := yaml.Unmarshal(bs, &data); err != nil {
		return unknownFormat
	}

	switch data.(type) {
	case nil:
		return emptyFormat
	case map[any]any:
		return staticFormat
	case []any:
		return sdFormat
	default:
		return unknownFormat
	}
}

// mergeDef prefers file level defaults over module defaults.
// The minimum update interval always comes from the module side.
func mergeDef(file, mod confgroup.Default) confgroup.Default {
	return confgroup.Default{
		MinUpdateEvery:     mod.MinUpdateEvery,
		UpdateEvery:        firstPositive(file.UpdateEvery, mod.UpdateEvery),
		AutoDetectionRetry: firstPositive(file.AutoDetectionRetry, mod.AutoDetectionRetry),
		Priority:           firstPositive(file.Priority, mod.Priority),
	}
}

func firstPositive(value int, others ...int) int {
	if value > 0 || len(others) == 0 {
		return value
	}
	return firstPositive(others[0], others[1:]...)
}

func moduleName(path string) string {
	file := filepath.Base(path)
	return file[:len(file)-len(filepath.Ext(file))]
}
