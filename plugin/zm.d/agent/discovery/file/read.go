// SPDX-License-Identifier: GPL-3.0-or-later

package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
)

const readerProvider = "file reader"

func NewReader(reg confgroup.Registry, paths []string) *Reader {
	return &Reader{
		Logger: log,
		reg:    reg,
		paths:  paths,
	}
}

// Reader reads the matching config files once and closes its output channel.
type Reader struct {
	*logger.Logger

	reg   confgroup.Registry
	paths []string
}

func (r *Reader) String() string {
	return readerProvider
}

func (r *Reader) Run(ctx context.Context, in chan<- []*confgroup.Group) {
	r.Info("instance is started")
	defer func() { r.Info("instance is stopped") }()

	select {
	case <-ctx.Done():
	case in <- r.groups():
	}

	close(in)
}

func (r *Reader) groups() []*confgroup.Group {
	var groups []*confgroup.Group

	for _, path := range globAll(r.paths) {
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			continue
		}

		group, err := parse(r.reg, path)
		if err != nil {
			r.Warningf("parse '%s': %v", path, err)
			continue
		}
		if group == nil {
			group = &confgroup.Group{Source: path}
		}
		groups = append(groups, group)
	}

	for _, group := range groups {
		for _, cfg := range group.Configs {
			cfg.SetSource(group.Source)
			cfg.SetProvider(readerProvider)
		}
	}

	return groups
}

func globAll(patterns []string) []string {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files
}
