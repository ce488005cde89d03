// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"fmt"
	"slices"
)

// Job defaults used when neither the module nor the job config sets a value.
const (
	UpdateEvery        = 10
	AutoDetectionRetry = 0
	Priority           = 70000
)

type Defaults struct {
	UpdateEvery        int
	AutoDetectionRetry int
	Priority           int
	// Disabled modules run only when switched on in the plugin config.
	Disabled bool
}

// Creator builds a fresh, unconfigured module instance per job.
type Creator struct {
	Defaults
	Create func() Module
}

// Registry maps module names to their creators.
type Registry map[string]Creator

// DefaultRegistry is filled by collector packages in their init functions.
var DefaultRegistry = Registry{}

func Register(name string, creator Creator) {
	DefaultRegistry.Register(name, creator)
}

// Register panics on a duplicate name.
func (r Registry) Register(name string, creator Creator) {
	if _, ok := r[name]; ok {
		panic(fmt.Sprintf("module '%s' is already registered", name))
	}
	if creator.Create == nil {
		panic(fmt.Sprintf("module '%s' has no Create func", name))
	}
	r[name] = creator
}

func (r Registry) Lookup(name string) (Creator, bool) {
	v, ok := r[name]
	return v, ok
}

// Names returns the registered module names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
