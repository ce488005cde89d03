// SPDX-License-Identifier: GPL-3.0-or-later

package confopt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := map[string]struct {
		input    string
		wantErr  bool
		expected time.Duration
	}{
		"go duration":  {input: "timeout: 1m30s", expected: 90 * time.Second},
		"int seconds":  {input: "timeout: 5", expected: 5 * time.Second},
		"float secs":   {input: "timeout: 1.5", expected: 1500 * time.Millisecond},
		"quoted":       {input: `timeout: "2s"`, expected: 2 * time.Second},
		"garbage":      {input: "timeout: soon", wantErr: true},
		"empty string": {input: `timeout: ""`, wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var cfg struct {
				Timeout Duration `yaml:"timeout"`
			}
			err := yaml.Unmarshal([]byte(test.input), &cfg)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, cfg.Timeout.Duration())
		})
	}
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	in := struct {
		Timeout Duration `json:"timeout"`
	}{Timeout: Duration(2500 * time.Millisecond)}

	bs, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout":2.5}`, string(bs))

	var out struct {
		Timeout Duration `json:"timeout"`
	}
	require.NoError(t, json.Unmarshal(bs, &out))
	assert.Equal(t, in.Timeout, out.Timeout)
}

func TestDuration_UnmarshalJSONString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"10s"`), &d))
	assert.Equal(t, 10*time.Second, d.Duration())
}
