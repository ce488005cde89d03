// SPDX-License-Identifier: GPL-3.0-or-later

// Package netdataapi writes the plugins.d external plugin text protocol.
package netdataapi

import (
	"io"
	"strconv"
	"strings"
)

// API writes protocol lines to the underlying writer. Write errors are ignored
// except by EMPTYLINE, which the agent uses to detect a closed stdout.
type API struct {
	io.Writer
}

// New panics if w is nil.
func New(w io.Writer) *API {
	if w == nil {
		panic("netdataapi: nil writer")
	}
	return &API{w}
}

// line renders `KEYWORD 'f1' 'f2' ...` followed by a newline.
func line(keyword string, fields ...string) []byte {
	var sb strings.Builder
	sb.WriteString(keyword)
	for _, f := range fields {
		sb.WriteString(" '")
		sb.WriteString(f)
		sb.WriteByte('\'')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func (a *API) write(b []byte) { _, _ = a.Write(b) }

func (a *API) CHART(opts ChartOpts) {
	a.write(line("CHART",
		opts.TypeID+"."+opts.ID,
		opts.Name,
		opts.Title,
		opts.Units,
		opts.Family,
		opts.Context,
		opts.ChartType,
		strconv.Itoa(opts.Priority),
		strconv.Itoa(opts.UpdateEvery),
		opts.Options,
		opts.Plugin,
		opts.Module,
	))
}

// DIMENSION applies to the most recent CHART.
func (a *API) DIMENSION(opts DimensionOpts) {
	a.write(line("DIMENSION",
		opts.ID,
		opts.Name,
		opts.Algorithm,
		strconv.Itoa(opts.Multiplier),
		strconv.Itoa(opts.Divisor),
		opts.Options,
	))
}

// CLABEL applies to the most recent CHART and takes effect on CLABELCOMMIT.
func (a *API) CLABEL(key, value string, source int) {
	a.write(line("CLABEL", key, value, strconv.Itoa(source)))
}

func (a *API) CLABELCOMMIT() { a.write([]byte("CLABEL_COMMIT\n")) }

// BEGIN opens a data block for a chart. msSince is the time since the previous
// block; zero omits it.
func (a *API) BEGIN(typeID, id string, msSince int) {
	b := line("BEGIN", typeID+"."+id)
	if msSince > 0 {
		b = append(b[:len(b)-1], " "+strconv.Itoa(msSince)+"\n"...)
	}
	a.write(b)
}

func (a *API) SET(id string, value int64) {
	a.write([]byte("SET '" + id + "' = " + strconv.FormatInt(value, 10) + "\n"))
}

// SETEMPTY marks the dimension as a gap for this block.
func (a *API) SETEMPTY(id string) {
	a.write([]byte("SET '" + id + "' = \n"))
}

func (a *API) END() { a.write([]byte("END\n\n")) }

// DISABLE tells the host not to restart the plugin.
func (a *API) DISABLE() { a.write([]byte("DISABLE\n")) }

func (a *API) EMPTYLINE() error {
	_, err := a.Write([]byte("\n"))
	return err
}
