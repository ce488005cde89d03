// SPDX-License-Identifier: GPL-3.0-or-later

package multipath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-homedir"
)

type ErrNotFound struct{ msg string }

func (e ErrNotFound) Error() string { return e.msg }

// IsNotFound returns a boolean indicating whether the error is ErrNotFound or not.
func IsNotFound(err error) bool {
	var errNotFound ErrNotFound
	return errors.As(err, &errNotFound)
}

// MultiPath is an ordered list of directories searched front to back.
type MultiPath []string

// New expands '~', drops empty and repeated entries and keeps the order.
func New(paths ...string) MultiPath {
	var mp MultiPath
	for _, dir := range paths {
		if dir == "" {
			continue
		}
		if d, err := homedir.Expand(dir); err == nil {
			dir = d
		}
		if !slices.Contains(mp, dir) {
			mp = append(mp, dir)
		}
	}
	return mp
}

// Find returns the first existing dir/filename.
func (p MultiPath) Find(filename string) (string, error) {
	for _, dir := range p {
		file := filepath.Join(dir, filename)
		if _, err := os.Stat(file); !os.IsNotExist(err) {
			return file, nil
		}
	}
	return "", ErrNotFound{msg: fmt.Sprintf("can't find '%s' in %v", filename, p)}
}

// FindFiles returns the matching files of the first directory that has any.
func (p MultiPath) FindFiles(suffixes ...string) ([]string, error) {
	for _, dir := range p {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		var files []string
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if len(suffixes) == 0 || hasSuffix(e.Name(), suffixes) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	return nil, nil
}

func (p MultiPath) String() string {
	return strings.Join(p, ",")
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
