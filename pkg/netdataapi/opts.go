// SPDX-License-Identifier: GPL-3.0-or-later

package netdataapi

type (
	// ChartOpts are the CHART line fields.
	ChartOpts struct {
		TypeID      string
		ID          string
		Name        string
		Title       string
		Units       string
		Family      string
		Context     string
		ChartType   string
		Priority    int
		UpdateEvery int
		Options     string
		Plugin      string
		Module      string
	}
	// DimensionOpts are the DIMENSION line fields.
	DimensionOpts struct {
		ID         string
		Name       string
		Algorithm  string
		Multiplier int
		Divisor    int
		Options    string
	}
)
