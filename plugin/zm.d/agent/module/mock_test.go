// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModule_Init(t *testing.T) {
	m := &MockModule{}
	ctx := context.Background()

	assert.NoError(t, m.Init(ctx))
	m.InitFunc = func(context.Context) error { return nil }
	assert.NoError(t, m.Init(ctx))

	m.FailOnInit = true
	assert.Error(t, m.Init(ctx))
}

func TestMockModule_Charts(t *testing.T) {
	m := &MockModule{}
	c := &Charts{}

	assert.Nil(t, m.Charts())
	m.ChartsFunc = func() *Charts { return c }
	assert.True(t, c == m.Charts())
}

func TestMockModule_Collect(t *testing.T) {
	m := &MockModule{}
	d := map[string]int64{"1": 1}
	ctx := context.Background()

	assert.Nil(t, m.Collect(ctx))
	m.CollectFunc = func(context.Context) map[string]int64 { return d }
	assert.Equal(t, d, m.Collect(ctx))
}

func TestMockModule_Snapshot(t *testing.T) {
	m := &MockModule{}
	ctx := context.Background()

	_, err := m.Snapshot(ctx)
	assert.Error(t, err)

	m.SnapshotFunc = func(context.Context) (map[string]any, error) { return map[string]any{"a": 1}, nil }
	v, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, v)
}

func TestMockModule_Cleanup(t *testing.T) {
	m := &MockModule{}

	require.False(t, m.CleanupDone)
	m.Cleanup(context.Background())
	assert.True(t, m.CleanupDone)
}
