// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"fmt"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
)

// Group is the set of job configurations coming from one source (a config file).
type Group struct {
	Configs []Config
	Source  string
}

// Registry holds per-module defaults.
type Registry map[string]Default

func (r Registry) Register(name string, def Default) {
	if name == "" {
		return
	}
	r[name] = def
}

func (r Registry) Lookup(name string) (Default, bool) {
	def, ok := r[name]
	return def, ok
}

// NewRegistry builds a Registry from the enabled modules, honoring the minimum update interval.
func NewRegistry(modules module.Registry, minUpdateEvery int) Registry {
	reg := make(Registry)
	for name, creator := range modules {
		reg.Register(name, Default{
			MinUpdateEvery:     minUpdateEvery,
			UpdateEvery:        creator.UpdateEvery,
			AutoDetectionRetry: creator.AutoDetectionRetry,
			Priority:           creator.Priority,
		})
	}
	return reg
}

func (g Group) String() string {
	return fmt.Sprintf("%s (%d jobs)", g.Source, len(g.Configs))
}
