// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/zmwatch/zmwatch/logger"
)

// Module is one collector instance bound to a single job config.
//
// The job calls Init once, then Check until it succeeds or retries run out,
// then Collect on every tick. Cleanup is called once when the job stops.
type Module interface {
	// Init validates the config. No network I/O.
	Init(context.Context) error
	// Check runs one collection and fails if nothing was collected.
	Check(context.Context) error
	Charts() *Charts
	// Collect returns nil or an empty map when the pass failed.
	Collect(context.Context) map[string]int64
	Cleanup(context.Context)
	GetBase() *Base
	Configuration() any
}

// Snapshotter is implemented by modules that can return one pass as typed
// values, used by the one-shot mode.
type Snapshotter interface {
	Snapshot(context.Context) (map[string]any, error)
}

// Base carries the job logger. Modules embed it.
type Base struct {
	*logger.Logger
}

func (b *Base) GetBase() *Base { return b }

// TestConfigurationSerialize unmarshals cfgJSON and cfgYAML into mod and checks
// that Configuration marshals back to the same document.
func TestConfigurationSerialize(t *testing.T, mod interface{ Configuration() any }, cfgJSON, cfgYAML []byte) {
	t.Helper()

	tests := map[string]struct {
		data      []byte
		marshal   func(any) ([]byte, error)
		unmarshal func([]byte, any) error
	}{
		"json": {data: cfgJSON, marshal: json.Marshal, unmarshal: json.Unmarshal},
		"yaml": {data: cfgYAML, marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, test.unmarshal(test.data, mod))

			out, err := test.marshal(mod.Configuration())
			require.NoError(t, err)

			var want, got map[string]any
			require.NoError(t, test.unmarshal(test.data, &want))
			require.NoError(t, test.unmarshal(out, &got))
			require.NotEmpty(t, want)

			assert.Equal(t, want, got)
		})
	}
}
