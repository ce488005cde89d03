// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_Add(t *testing.T) {
	tests := map[string]struct {
		prepare        []Group
		groups         []Group
		expectedAdd    []Config
		expectedRemove []Config
	}{
		"new source": {
			groups:      []Group{newGroup("a.conf", newCfg("cam1"))},
			expectedAdd: []Config{newCfg("cam1")},
		},
		"repeated identical updates": {
			groups: []Group{
				newGroup("a.conf", newCfg("cam1")),
				newGroup("a.conf", newCfg("cam1")),
				newGroup("a.conf", newCfg("cam1")),
			},
			expectedAdd: []Config{newCfg("cam1")},
		},
		"source emptied": {
			prepare:        []Group{newGroup("a.conf", newCfg("cam1"), newCfg("cam2"))},
			groups:         []Group{newGroup("a.conf")},
			expectedRemove: []Config{newCfg("cam1"), newCfg("cam2")},
		},
		"source shrinks": {
			prepare:        []Group{newGroup("a.conf", newCfg("cam1"), newCfg("cam2"))},
			groups:         []Group{newGroup("a.conf", newCfg("cam2"))},
			expectedRemove: []Config{newCfg("cam1")},
		},
		"source changes a job": {
			prepare:        []Group{newGroup("a.conf", newCfg("cam1"))},
			groups:         []Group{newGroup("a.conf", newCfg("cam2"))},
			expectedAdd:    []Config{newCfg("cam2")},
			expectedRemove: []Config{newCfg("cam1")},
		},
		"unknown source emptied": {
			groups: []Group{newGroup("a.conf"), newGroup("a.conf")},
		},
		"same jobs from two sources": {
			groups: []Group{
				newGroup("a.conf", newCfg("cam1"), newCfg("cam2")),
				newGroup("b.conf", newCfg("cam1"), newCfg("cam2")),
			},
			expectedAdd: []Config{newCfg("cam1"), newCfg("cam2")},
		},
		"one of two sources emptied": {
			prepare: []Group{
				newGroup("a.conf", newCfg("cam1"), newCfg("cam2")),
				newGroup("b.conf", newCfg("cam1"), newCfg("cam2")),
			},
			groups: []Group{newGroup("b.conf")},
		},
		"both sources emptied": {
			prepare: []Group{
				newGroup("a.conf", newCfg("cam1")),
				newGroup("b.conf", newCfg("cam1")),
			},
			groups:         []Group{newGroup("a.conf"), newGroup("b.conf")},
			expectedRemove: []Config{newCfg("cam1")},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cache := NewCache()

			for _, group := range test.prepare {
				cache.Add(&group)
			}

			var added, removed []Config
			for _, group := range test.groups {
				a, r := cache.Add(&group)
				added = append(added, a...)
				removed = append(removed, r...)
			}

			sortConfigs(added)
			sortConfigs(removed)
			sortConfigs(test.expectedAdd)
			sortConfigs(test.expectedRemove)

			assert.Equalf(t, test.expectedAdd, added, "added configs")
			assert.Equalf(t, test.expectedRemove, removed, "removed configs")
		})
	}
}

func TestCache_AddNil(t *testing.T) {
	added, removed := NewCache().Add(nil)

	assert.Nil(t, added)
	assert.Nil(t, removed)
}

func newGroup(source string, cfgs ...Config) Group {
	return Group{Configs: cfgs, Source: source}
}

func newCfg(name string) Config {
	return Config{"name": name, "module": "zoneminder"}
}

func sortConfigs(cfgs []Config) {
	sort.Slice(cfgs, func(i, j int) bool { return cfgs[i].FullName() < cfgs[j].FullName() })
}
