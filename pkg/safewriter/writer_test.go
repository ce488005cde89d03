// SPDX-License-Identifier: GPL-3.0-or-later

package safewriter

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_ConcurrentBlocksStayWhole(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	block := "BEGIN 'zoneminder_cam1.events'\nSET 'events' = 4\nEND\n"

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Write([]byte(block))
		}()
	}
	wg.Wait()

	assert.Equal(t, strings.Repeat(block, 50), buf.String())
}
