// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"

	"github.com/gohugoio/hashstructure"
)

const (
	keyName        = "name"
	keyModule      = "module"
	keyUpdateEvery = "update_every"
	keyDetectRetry = "autodetection_retry"
	keyPriority    = "priority"
	keyLabels      = "labels"

	ikeySource   = "__source__"
	ikeyProvider = "__provider__"
)

// Config is a single job configuration as read from a config file.
// Keys wrapped in double underscores are internal and never reach the module.
type Config map[string]any

type Default struct {
	MinUpdateEvery     int `yaml:"-"`
	UpdateEvery        int `yaml:"update_every"`
	AutoDetectionRetry int `yaml:"autodetection_retry"`
	Priority           int `yaml:"priority"`
}

func (c Config) Name() string            { v, _ := c.get(keyName).(string); return v }
func (c Config) Module() string          { v, _ := c.get(keyModule).(string); return v }
func (c Config) UpdateEvery() int        { v, _ := c.get(keyUpdateEvery).(int); return v }
func (c Config) AutoDetectionRetry() int { v, _ := c.get(keyDetectRetry).(int); return v }
func (c Config) Priority() int           { v, _ := c.get(keyPriority).(int); return v }
func (c Config) Source() string          { v, _ := c.get(ikeySource).(string); return v }
func (c Config) Provider() string        { v, _ := c.get(ikeyProvider).(string); return v }

func (c Config) FullName() string {
	if c.Name() == c.Module() {
		return c.Name()
	}
	return c.Module() + "_" + c.Name()
}

// Labels returns the string pairs of the 'labels' section, ignoring anything else.
func (c Config) Labels() map[string]string {
	labels := make(map[string]string)

	switch v := c.get(keyLabels).(type) {
	case map[any]any:
		for name, value := range v {
			n, ok1 := name.(string)
			s, ok2 := value.(string)
			if ok1 && ok2 {
				labels[n] = s
			}
		}
	case map[string]any:
		for name, value := range v {
			if s, ok := value.(string); ok {
				labels[name] = s
			}
		}
	}

	return labels
}

func (c Config) SetName(v string)     { c.set(keyName, v) }
func (c Config) SetModule(v string)   { c.set(keyModule, v) }
func (c Config) SetSource(v string)   { c.set(ikeySource, v) }
func (c Config) SetProvider(v string) { c.set(ikeyProvider, v) }

// Hash identifies the job configuration; internal keys do not take part in it.
func (c Config) Hash() uint64 {
	public := make(map[string]any, len(c))
	for k, v := range c {
		if !isInternalKey(k) {
			public[k] = v
		}
	}
	hash, _ := hashstructure.Hash(public, nil)
	return hash
}

// Public returns a copy without internal keys.
func (c Config) Public() Config {
	cfg := make(Config, len(c))
	for k, v := range c {
		if !isInternalKey(k) {
			cfg[k] = v
		}
	}
	return cfg
}

func (c Config) ApplyDefaults(def Default) {
	if c == nil {
		return
	}

	if c.UpdateEvery() <= 0 {
		c.set(keyUpdateEvery, firstPositive(def.UpdateEvery, module.UpdateEvery))
	}
	if c.UpdateEvery() < def.MinUpdateEvery {
		c.set(keyUpdateEvery, def.MinUpdateEvery)
	}
	if c.AutoDetectionRetry() <= 0 {
		c.set(keyDetectRetry, firstPositive(def.AutoDetectionRetry, module.AutoDetectionRetry))
	}
	if c.Priority() <= 0 {
		c.set(keyPriority, firstPositive(def.Priority, module.Priority))
	}

	if c.Name() == "" {
		c.SetName(c.Module())
	} else {
		c.SetName(cleanName(c.Name()))
	}
}

func (c Config) String() string {
	return fmt.Sprintf("%s[%s]", c.Module(), c.Name())
}

func (c Config) get(key string) any { return c[key] }

func (c Config) set(key string, value any) { c[key] = value }

var reSpace = regexp.MustCompile(`\s+`)

func cleanName(name string) string {
	return reSpace.ReplaceAllString(name, "_")
}

func isInternalKey(key string) bool {
	return strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__")
}

func firstPositive(value int, others ...int) int {
	if value > 0 || len(others) == 0 {
		return value
	}
	return firstPositive(others[0], others[1:]...)
}
