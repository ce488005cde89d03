// SPDX-License-Identifier: GPL-3.0-or-later

// Package filelock keeps one advisory lock file per polled target so that
// two plugin instances sharing a lock directory never poll the same server.
package filelock

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const lockSuffix = ".target.lock"

func New(dir string) *Locker {
	return &Locker{
		dir:   dir,
		locks: make(map[string]*flock.Flock),
	}
}

type Locker struct {
	mu    sync.Mutex
	dir   string
	locks map[string]*flock.Flock
}

// Lock acquires the lock for the target without blocking.
// It reports false with a nil error when another process holds it.
func (l *Locker) Lock(target string) (bool, error) {
	path := l.path(target)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.locks[path]; ok {
		return true, nil
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if !ok {
		_ = fl.Close()
		return false, err
	}

	l.locks[path] = fl
	return true, nil
}

func (l *Locker) Unlock(target string) {
	path := l.path(target)

	l.mu.Lock()
	defer l.mu.Unlock()

	if fl, ok := l.locks[path]; ok {
		delete(l.locks, path)
		_ = fl.Close()
	}
}

func (l *Locker) UnlockAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for path, fl := range l.locks {
		delete(l.locks, path)
		_ = fl.Close()
	}
}

// Held returns the sorted lock file paths owned by this Locker.
func (l *Locker) Held() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := make([]string, 0, len(l.locks))
	for path := range l.locks {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (l *Locker) isLocked(target string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.locks[l.path(target)]
	return ok
}

func (l *Locker) path(target string) string {
	return filepath.Join(l.dir, lockName(target)+lockSuffix)
}

var lockNameReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")

func lockName(target string) string {
	return lockNameReplacer.Replace(target)
}
