// SPDX-License-Identifier: GPL-3.0-or-later

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"

	"github.com/stretchr/testify/require"
)

var testRegistry = confgroup.Registry{
	"zoneminder": {UpdateEvery: 60, Priority: 70000},
}

type tmpDir struct {
	t   *testing.T
	dir string
}

func newTmpDir(t *testing.T) *tmpDir {
	return &tmpDir{t: t, dir: t.TempDir()}
}

func (d *tmpDir) join(name string) string {
	return filepath.Join(d.dir, name)
}

func (d *tmpDir) write(name, content string) string {
	path := d.join(name)
	require.NoError(d.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// place writes the file under a temporary name first so it appears complete.
func (d *tmpDir) place(name, content string) string {
	tmp := d.write(name+".tmp", content)
	path := d.join(name)
	require.NoError(d.t, os.Rename(tmp, path))
	return path
}

func (d *tmpDir) remove(name string) {
	require.NoError(d.t, os.Remove(d.join(name)))
}

func runDiscoverer(t *testing.T, dd discoverer) (<-chan []*confgroup.Group, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan []*confgroup.Group)

	go forward(ctx, dd, out)

	t.Cleanup(cancel)
	return out, cancel
}

func newTestWatcher(tmp *tmpDir) *Watcher {
	w := NewWatcher(testRegistry, []string{tmp.join("*.conf")})
	w.refreshEvery = 100 * time.Millisecond
	return w
}

func waitForGroup(t *testing.T, ch <-chan []*confgroup.Group, source string, match func(*confgroup.Group) bool) *confgroup.Group {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case groups := <-ch:
			for _, g := range groups {
				if g.Source == source && match(g) {
					return g
				}
			}
		case <-timeout:
			t.Fatalf("no matching group for '%s'", source)
			return nil
		}
	}
}
