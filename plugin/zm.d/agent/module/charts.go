// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ChartType string

const (
	Line    ChartType = "line"
	Area    ChartType = "area"
	Stacked ChartType = "stacked"
)

func (c ChartType) String() string {
	if c == Area || c == Stacked {
		return string(c)
	}
	return string(Line)
}

// DimAlgo is how the host interprets collected values.
type DimAlgo string

const (
	// Absolute values are drawn as collected.
	Absolute DimAlgo = "absolute"
	// Incremental values are counters; the per-second rate is drawn.
	Incremental DimAlgo = "incremental"
)

func (d DimAlgo) String() string {
	if d == Incremental {
		return string(d)
	}
	return string(Absolute)
}

// Label sources as understood by CLABEL.
const (
	LabelSourceAuto = 1 << 0
	LabelSourceConf = 1 << 1
)

type (
	Charts []*Chart

	Chart struct {
		ID       string
		Title    string
		Units    string
		Fam      string
		Ctx      string
		Type     ChartType
		Priority int
		Obsolete bool

		Labels []Label
		Dims   Dims

		// created is set once the CHART line was written; remove drops the
		// chart from the job after the obsolete CHART line is sent.
		created bool
		remove  bool
		updated bool
	}

	Label struct {
		Key    string
		Value  string
		Source int
	}

	Dim struct {
		ID     string
		Name   string
		Algo   DimAlgo
		Mul    int
		Div    int
		Hidden bool
	}

	Dims []*Dim
)

func (c *Chart) options() string {
	if c.Obsolete {
		return "obsolete"
	}
	return ""
}

func (d *Dim) options() string {
	if d.Hidden {
		return "hidden"
	}
	return ""
}

// Add validates and appends charts. It stops at the first invalid or
// duplicate chart.
func (c *Charts) Add(charts ...*Chart) error {
	for _, chart := range charts {
		if err := chart.validate(); err != nil {
			return fmt.Errorf("chart '%s': %v", chart.ID, err)
		}
		if existing := c.Get(chart.ID); existing != nil && !existing.remove {
			return fmt.Errorf("chart '%s': already added", chart.ID)
		}
		*c = append(*c, chart)
	}
	return nil
}

func (c Charts) Get(id string) *Chart {
	for _, chart := range c {
		if chart.ID == id {
			return chart
		}
	}
	return nil
}

func (c Charts) Has(id string) bool { return c.Get(id) != nil }

// Copy returns a deep copy.
func (c Charts) Copy() *Charts {
	charts := make(Charts, 0, len(c))
	for _, chart := range c {
		charts = append(charts, chart.Copy())
	}
	return &charts
}

func (c Charts) validate() error {
	for _, chart := range c {
		if err := chart.validate(); err != nil {
			return fmt.Errorf("chart '%s': %v", chart.ID, err)
		}
	}
	return nil
}

func (c *Chart) AddDim(dim *Dim) error {
	if err := dim.validate(); err != nil {
		return fmt.Errorf("chart '%s': %v", c.ID, err)
	}
	for _, d := range c.Dims {
		if d.ID == dim.ID {
			return fmt.Errorf("chart '%s': dim '%s' already added", c.ID, dim.ID)
		}
	}
	c.Dims = append(c.Dims, dim)
	return nil
}

// SetLabel adds or replaces a label. A chart that was already sent is sent
// again on the next collection so the host picks up the change.
func (c *Chart) SetLabel(key, value string) {
	for i, l := range c.Labels {
		if l.Key == key {
			if l.Value == value {
				return
			}
			c.Labels[i].Value = value
			c.created = false
			return
		}
	}
	c.Labels = append(c.Labels, Label{Key: key, Value: value})
	c.created = false
}

func (c *Chart) markRemove() {
	c.Obsolete = true
	c.remove = true
}

// Copy returns a deep copy with the job state reset.
func (c *Chart) Copy() *Chart {
	cp := *c
	cp.created, cp.remove, cp.updated = false, false, false
	cp.Labels = append([]Label(nil), c.Labels...)
	cp.Dims = make(Dims, 0, len(c.Dims))
	for _, d := range c.Dims {
		dim := *d
		cp.Dims = append(cp.Dims, &dim)
	}
	return &cp
}

func (c *Chart) validate() error {
	switch {
	case c.ID == "":
		return errors.New("empty ID")
	case c.Title == "":
		return errors.New("empty title")
	case c.Units == "":
		return errors.New("empty units")
	}
	if r, ok := badIDRune(c.ID); ok {
		return fmt.Errorf("unacceptable symbol '%c' in ID", r)
	}

	seen := make(map[string]bool, len(c.Dims))
	for _, d := range c.Dims {
		if err := d.validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dim '%s'", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func (d *Dim) validate() error {
	if d.ID == "" {
		return errors.New("empty dim ID")
	}
	if r, ok := badIDRune(d.ID); ok {
		return fmt.Errorf("unacceptable symbol '%c' in dim ID '%s'", r, d.ID)
	}
	return nil
}

// badIDRune reports the first rune that would break the quoted protocol fields.
func badIDRune(id string) (rune, bool) {
	i := strings.IndexFunc(id, func(r rune) bool {
		return r == '\'' || r == '"' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if i < 0 {
		return 0, false
	}
	return rune(id[i]), true
}

// TestMetricsHasAllChartsDims fails t for every dimension of a live chart
// that has no value in mx.
func TestMetricsHasAllChartsDims(t *testing.T, charts *Charts, mx map[string]int64) {
	t.Helper()
	for _, chart := range *charts {
		if chart.Obsolete {
			continue
		}
		for _, dim := range chart.Dims {
			_, ok := mx[dim.ID]
			assert.Truef(t, ok, "chart '%s' dim '%s' has no collected value", chart.ID, dim.ID)
		}
	}
}
