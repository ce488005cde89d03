// SPDX-License-Identifier: GPL-3.0-or-later

package file

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"

	"github.com/fsnotify/fsnotify"
)

const watcherProvider = "file watcher"

func NewWatcher(reg confgroup.Registry, paths []string) *Watcher {
	return &Watcher{
		Logger:       log,
		paths:        paths,
		reg:          reg,
		refreshEvery: time.Minute,
		seen:         make(map[string]fileState),
	}
}

// Watcher re-reads the matching config files whenever their directory changes.
// A file that disappears is reported as an empty group so its jobs get stopped.
type Watcher struct {
	*logger.Logger

	paths        []string
	reg          confgroup.Registry
	watcher      *fsnotify.Watcher
	refreshEvery time.Duration
	seen         map[string]fileState
}

type fileState struct {
	modTime time.Time
	size    int64
}

func (w *Watcher) String() string {
	return watcherProvider
}

func (w *Watcher) Run(ctx context.Context, in chan<- []*confgroup.Group) {
	w.Info("instance is started")
	defer func() { w.Info("instance is stopped") }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.Errorf("fsnotify watcher initialization: %v", err)
		return
	}
	w.watcher = watcher
	defer w.stop()

	w.refresh(ctx, in)

	tk := time.NewTicker(w.refreshEvery)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			w.refresh(ctx, in)
		case event := <-w.watcher.Events:
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Rename) {
				// editors often rename the old file and write a new one right after
				time.Sleep(100 * time.Millisecond)
			}
			w.refresh(ctx, in)
		case err := <-w.watcher.Errors:
			if err != nil {
				w.Warningf("watch: %v", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Name == "" || event.Op == fsnotify.Chmod {
		return false
	}
	return w.matches(event.Name)
}

func (w *Watcher) matches(path string) bool {
	for _, pattern := range w.paths {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) refresh(ctx context.Context, in chan<- []*confgroup.Group) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	var groups []*confgroup.Group
	present := make(map[string]bool)

	for _, path := range globAll(w.paths) {
		fi, err := os.Lstat(path)
		if err != nil {
			w.Warningf("lstat '%s': %v", path, err)
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}

		present[path] = true
		state := fileState{modTime: fi.ModTime(), size: fi.Size()}
		if prev, ok := w.seen[path]; ok && prev.modTime.Equal(state.modTime) && prev.size == state.size {
			continue
		}
		w.seen[path] = state

		group, err := parse(w.reg, path)
		if err != nil {
			w.Warningf("parse '%s': %v", path, err)
			continue
		}
		if group == nil {
			group = &confgroup.Group{Source: path}
		}
		for _, cfg := range group.Configs {
			cfg.SetSource(path)
			cfg.SetProvider(watcherProvider)
		}
		groups = append(groups, group)
	}

	for path := range w.seen {
		if !present[path] {
			delete(w.seen, path)
			groups = append(groups, &confgroup.Group{Source: path})
		}
	}

	send(ctx, in, groups)

	w.watchDirs()
}

func (w *Watcher) watchDirs() {
	for _, pattern := range w.paths {
		dir := filepath.Dir(pattern)
		if err := w.watcher.Add(dir); err != nil {
			w.Errorf("start watching '%s': %v", dir, err)
		}
	}
}

func (w *Watcher) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Close blocks until pending events and errors are consumed
	go func() {
		for {
			select {
			case <-w.watcher.Events:
			case <-w.watcher.Errors:
			case <-ctx.Done():
				return
			}
		}
	}()

	_ = w.watcher.Close()
}
