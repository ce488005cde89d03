// SPDX-License-Identifier: GPL-3.0-or-later

package jobmgr

import (
	"context"
	"slices"
	"time"

	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/ticker"
)

func (m *Manager) runRunningJobsHandling(ctx context.Context) {
	tk := ticker.New(time.Second)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case clock, ok := <-tk.C:
			if !ok {
				return
			}
			m.notifyRunningJobs(clock)
		}
	}
}

func (m *Manager) notifyRunningJobs(clock int) {
	m.queueMux.Lock()
	defer m.queueMux.Unlock()

	for _, job := range m.queue {
		job.Tick(clock)
	}
}

func (m *Manager) startJob(job *module.Job) {
	m.queueMux.Lock()
	defer m.queueMux.Unlock()

	go job.Start()

	m.queue = append(m.queue, job)
}

func (m *Manager) stopJob(fullName string) bool {
	m.queueMux.Lock()
	defer m.queueMux.Unlock()

	idx := slices.IndexFunc(m.queue, func(job *module.Job) bool {
		return job.FullName() == fullName
	})
	if idx == -1 {
		return false
	}

	m.queue[idx].Stop()
	m.queue = slices.Delete(m.queue, idx, idx+1)

	return true
}

func (m *Manager) stopRunningJobs() []string {
	m.queueMux.Lock()
	defer m.queueMux.Unlock()

	var names []string
	for _, job := range m.queue {
		job.Stop()
		names = append(names, job.FullName())
	}
	m.queue = m.queue[:0]

	return names
}
