// SPDX-License-Identifier: GPL-3.0-or-later

// Package file turns job config files into config groups.
// Files are either read once or watched for changes.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
)

var log = logger.New().With(
	slog.String("component", "discovery"),
	slog.String("discoverer", "file"),
)

func NewDiscovery(cfg Config) (*Discovery, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid file discovery config: %v", err)
	}

	d := &Discovery{Logger: log}

	if len(cfg.Read) != 0 {
		d.discoverers = append(d.discoverers, NewReader(cfg.Registry, cfg.Read))
	}
	if len(cfg.Watch) != 0 {
		d.discoverers = append(d.discoverers, NewWatcher(cfg.Registry, cfg.Watch))
	}
	if len(d.discoverers) == 0 {
		return nil, errors.New("nothing to read or watch")
	}

	return d, nil
}

type (
	Discovery struct {
		*logger.Logger
		discoverers []discoverer
	}
	discoverer interface {
		Run(ctx context.Context, in chan<- []*confgroup.Group)
	}
)

func (d *Discovery) String() string {
	return fmt.Sprintf("file discovery: %v", d.discoverers)
}

// Run forwards the groups of every discoverer to in until ctx is done.
func (d *Discovery) Run(ctx context.Context, in chan<- []*confgroup.Group) {
	d.Infof("running %d discoverer(s)", len(d.discoverers))
	defer d.Info("stopped")

	var wg conc.WaitGroup
	for _, dd := range d.discoverers {
		wg.Go(func() { forward(ctx, dd, in) })
	}
	wg.Wait()

	<-ctx.Done()
}

func forward(ctx context.Context, dd discoverer, in chan<- []*confgroup.Group) {
	updates := make(chan []*confgroup.Group)
	go dd.Run(ctx, updates)

	for {
		select {
		case <-ctx.Done():
			return
		case groups, ok := <-updates:
			if !ok {
				return
			}
			send(ctx, in, groups)
		}
	}
}

func send(ctx context.Context, in chan<- []*confgroup.Group, groups []*confgroup.Group) {
	if len(groups) == 0 {
		return
	}
	select {
	case <-ctx.Done():
	case in <- groups:
	}
}
