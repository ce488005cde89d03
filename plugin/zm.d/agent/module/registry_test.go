// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Register(t *testing.T) {
	creator := Creator{Create: func() Module { return &MockModule{} }}

	tests := map[string]struct {
		prepare   func(r Registry)
		creator   Creator
		wantPanic bool
	}{
		"new name": {
			creator: creator,
		},
		"duplicate name": {
			prepare: func(r Registry) { r.Register("zoneminder", creator) },
			creator: creator,
			wantPanic: true,
		},
		"nil Create": {
			creator:   Creator{},
			wantPanic: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r := Registry{}
			if test.prepare != nil {
				test.prepare(r)
			}

			register := func() { r.Register("zoneminder", test.creator) }

			if test.wantPanic {
				assert.Panics(t, register)
			} else {
				assert.NotPanics(t, register)
				_, ok := r["zoneminder"]
				assert.True(t, ok)
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	registry := Registry{"zoneminder": Creator{Defaults: Defaults{UpdateEvery: 30}}}

	c, ok := registry.Lookup("zoneminder")
	assert.True(t, ok)
	assert.Equal(t, 30, c.UpdateEvery)

	_, ok = registry.Lookup("unknown")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	registry := Registry{"zoneminder": {}, "b": {}, "a": {}}

	assert.Equal(t, []string{"a", "b", "zoneminder"}, registry.Names())
	assert.Empty(t, Registry{}.Names())
}
