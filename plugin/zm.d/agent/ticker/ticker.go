// SPDX-License-Identifier: GPL-3.0-or-later

package ticker

import "time"

type (
	// Ticker sends the loop counter on C at every interval boundary of the wall clock.
	// A slow receiver misses ticks rather than queueing them.
	Ticker struct {
		C        <-chan int
		done     chan struct{}
		loops    int
		interval time.Duration
	}
)

// New returns a started Ticker.
func New(interval time.Duration) *Ticker {
	t := &Ticker{
		interval: interval,
		done:     make(chan struct{}, 1),
	}
	t.start()
	return t
}

func (t *Ticker) start() {
	ch := make(chan int)
	t.C = ch
	go func() {
	LOOP:
		for {
			now := time.Now()
			next := now.Truncate(t.interval).Add(t.interval)

			select {
			case <-t.done:
				break LOOP
			case <-time.After(next.Sub(now)):
			}

			select {
			case ch <- t.loops:
				t.loops++
			default:
			}
		}
		close(ch)
	}()
}

// Stop stops the ticker and closes C.
func (t *Ticker) Stop() {
	select {
	case t.done <- struct{}{}:
	default:
	}
}
