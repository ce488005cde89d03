// SPDX-License-Identifier: GPL-3.0-or-later

package multipath

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.Equal(t, MultiPath{"conf1", "conf2", "conf3"}, New("conf1", "conf2", "conf2", "", "conf3"))
}

func TestNew_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	defer func() { homedir.DisableCache = false }()

	assert.Equal(t, MultiPath{filepath.Join(home, ".zmwatch")}, New("~/.zmwatch"))
}

func TestMultiPath_Find(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFile(t, dir2, "zoneminder.conf")
	writeFile(t, dir1, "zmwatch.conf")
	writeFile(t, dir2, "zmwatch.conf")

	m := New(filepath.Join(dir1, "missing"), dir1, dir2)

	v, err := m.Find("not_exist.conf")
	assert.Zero(t, v)
	assert.True(t, IsNotFound(err))

	v, err = m.Find("zoneminder.conf")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir2, "zoneminder.conf"), v)

	v, err = m.Find("zmwatch.conf")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir1, "zmwatch.conf"), v)
}

func TestMultiPath_FindFiles(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeFile(t, dir2, "zoneminder.conf")
	writeFile(t, dir2, "notes.txt")

	m := New(filepath.Join(dir1, "missing"), dir1, dir2)

	files, err := m.FindFiles(".conf")
	assert.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir2, "zoneminder.conf")}, files)

	files, err = m.FindFiles()
	assert.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir2, "notes.txt"), filepath.Join(dir2, "zoneminder.conf")}, files)

	files, err = m.FindFiles(".yaml")
	assert.NoError(t, err)
	assert.Nil(t, files)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound{}))
	assert.False(t, IsNotFound(errors.New("")))
}

func writeFile(t *testing.T, dir, name string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("jobs: []\n"), 0o644))
}
