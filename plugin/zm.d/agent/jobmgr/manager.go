// SPDX-License-Identifier: GPL-3.0-or-later

package jobmgr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zmwatch/zmwatch/logger"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/confgroup"
	"github.com/zmwatch/zmwatch/plugin/zm.d/agent/module"

	"github.com/sourcegraph/conc/pool"
	"gopkg.in/yaml.v2"
)

type FileLocker interface {
	Lock(name string) (bool, error)
	Unlock(name string)
}

type jobStatus = string

const (
	jobStatusRunning          jobStatus = "running"
	jobStatusRetrying         jobStatus = "retrying"
	jobStatusStoppedFailed    jobStatus = "stopped_failed"
	jobStatusStoppedDupGlobal jobStatus = "stopped_duplicate_global"
	jobStatusStoppedLockErr   jobStatus = "stopped_lock_error"
	jobStatusStoppedCreateErr jobStatus = "stopped_creation_error"
)

const defaultMaxDetections = 8

func New() *Manager {
	return &Manager{
		Logger: logger.New().With(
			slog.String("component", "job manager"),
		),
		Out:           io.Discard,
		FileLock:      noop{},
		MaxDetections: defaultMaxDetections,

		cache:    confgroup.NewCache(),
		running:  make(map[string]uint64),
		retrying: make(map[uint64]retryTask),
		statuses: make(map[string]jobStatus),
		addCh:    make(chan confgroup.Config),
		removeCh: make(chan confgroup.Config),
	}
}

// Manager turns config groups into running jobs.
// Auto-detection runs on a bounded pool so a slow target does not hold up the others.
type Manager struct {
	*logger.Logger

	PluginName    string
	Out           io.Writer
	Modules       module.Registry
	FileLock      FileLocker
	MaxDetections int

	cache *confgroup.Cache

	mu       sync.Mutex
	running  map[string]uint64 // full name -> config hash, reserved from detection until removal
	retrying map[uint64]retryTask
	statuses map[string]jobStatus

	addCh    chan confgroup.Config
	removeCh chan confgroup.Config

	queueMux sync.Mutex
	queue    []*module.Job
}

type retryTask struct {
	cancel  context.CancelFunc
	timeout int
	retries int
}

func (m *Manager) Run(ctx context.Context, in chan []*confgroup.Group) {
	m.Info("instance is started")
	defer func() { m.cleanup(); m.Info("instance is stopped") }()

	detectors := pool.New().WithMaxGoroutines(max(m.MaxDetections, 1))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() { defer wg.Done(); m.runGroupsHandling(ctx, in) }()

	wg.Add(1)
	go func() { defer wg.Done(); m.runConfigsHandling(ctx, detectors) }()

	wg.Add(1)
	go func() { defer wg.Done(); m.runRunningJobsHandling(ctx) }()

	wg.Wait()
	detectors.Wait()
}

// Status reports the last known state of the job with the given full name.
func (m *Manager) Status(fullName string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.statuses[fullName]
	return s, ok
}

func (m *Manager) runGroupsHandling(ctx context.Context, in chan []*confgroup.Group) {
	for {
		select {
		case <-ctx.Done():
			return
		case groups, ok := <-in:
			if !ok {
				<-ctx.Done()
				return
			}
			for _, gr := range groups {
				added, removed := m.cache.Add(gr)
				m.Debugf("received config group ('%s'): %d jobs (added: %d, removed: %d)", gr.Source, len(gr.Configs), len(added), len(removed))
				sendConfigs(ctx, m.removeCh, removed)
				sendConfigs(ctx, m.addCh, added)
			}
		}
	}
}

func (m *Manager) runConfigsHandling(ctx context.Context, detectors *pool.Pool) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-m.addCh:
			m.addConfig(ctx, detectors, cfg)
		case cfg := <-m.removeCh:
			m.removeConfig(cfg)
		}
	}
}

func (m *Manager) addConfig(ctx context.Context, detectors *pool.Pool, cfg confgroup.Config) {
	m.mu.Lock()
	task, isRetry := m.retrying[cfg.Hash()]
	if isRetry {
		task.cancel()
		delete(m.retrying, cfg.Hash())
	}
	if _, ok := m.running[cfg.FullName()]; ok {
		m.mu.Unlock()
		m.Infof("%s job is being served by another job, skipping it", cfg)
		return
	}
	m.running[cfg.FullName()] = cfg.Hash()
	m.mu.Unlock()

	job, err := m.createJob(cfg)
	if err != nil {
		m.Warningf("couldn't create %s: %v", cfg, err)
		m.release(cfg, jobStatusStoppedCreateErr)
		return
	}

	if isRetry {
		job.AutoDetectEvery = task.timeout
		job.AutoDetectTries = task.retries
	}

	detectors.Go(func() { m.detect(ctx, cfg, job) })
}

func (m *Manager) detect(ctx context.Context, cfg confgroup.Config, job *module.Job) {
	if ctx.Err() != nil {
		m.release(cfg, "")
		return
	}

	if err := job.AutoDetection(); err != nil {
		if !job.RetryAutoDetection() {
			m.release(cfg, jobStatusStoppedFailed)
			return
		}

		m.Infof("%s job detection failed, will retry in %d seconds", cfg, job.AutoDetectionEvery())

		rctx, cancel := context.WithCancel(ctx)
		m.mu.Lock()
		if m.running[cfg.FullName()] != cfg.Hash() {
			m.mu.Unlock()
			cancel()
			return
		}
		delete(m.running, cfg.FullName())
		m.retrying[cfg.Hash()] = retryTask{
			cancel:  cancel,
			timeout: job.AutoDetectionEvery(),
			retries: job.AutoDetectTries,
		}
		m.statuses[cfg.FullName()] = jobStatusRetrying
		m.mu.Unlock()

		go runRetryTask(rctx, m.addCh, cfg, time.Second*time.Duration(job.AutoDetectionEvery()))
		return
	}

	ok, err := m.FileLock.Lock(cfg.FullName())
	switch {
	case isTooManyOpenFiles(err):
		m.Errorf("%s job lock: %v", cfg, err)
		job.Cleanup()
		m.release(cfg, jobStatusStoppedLockErr)
		return
	case err != nil:
		m.Warningf("%s job lock: %v, starting it unlocked", cfg, err)
	case !ok:
		m.Infof("%s job is being served by another plugin instance, skipping it", cfg)
		job.Cleanup()
		m.release(cfg, jobStatusStoppedDupGlobal)
		return
	}

	m.mu.Lock()
	if m.running[cfg.FullName()] != cfg.Hash() {
		// removed while detecting
		m.mu.Unlock()
		m.FileLock.Unlock(cfg.FullName())
		job.Cleanup()
		return
	}
	m.statuses[cfg.FullName()] = jobStatusRunning
	m.startJob(job)
	m.mu.Unlock()
}

func (m *Manager) release(cfg confgroup.Config, status jobStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running[cfg.FullName()] == cfg.Hash() {
		delete(m.running, cfg.FullName())
	}
	if status != "" {
		m.statuses[cfg.FullName()] = status
	}
}

func (m *Manager) removeConfig(cfg confgroup.Config) {
	m.mu.Lock()
	if task, ok := m.retrying[cfg.Hash()]; ok {
		task.cancel()
		delete(m.retrying, cfg.Hash())
	}
	owned := m.running[cfg.FullName()] == cfg.Hash()
	if owned {
		delete(m.running, cfg.FullName())
		delete(m.statuses, cfg.FullName())
	}
	m.mu.Unlock()

	if owned && m.stopJob(cfg.FullName()) {
		m.FileLock.Unlock(cfg.FullName())
	}
}

func (m *Manager) createJob(cfg confgroup.Config) (*module.Job, error) {
	m.Debugf("creating %s job, config: %v", cfg, cfg.Public())

	mod, err := BuildModule(m.Modules, cfg)
	if err != nil {
		return nil, err
	}

	return module.NewJob(module.JobConfig{
		PluginName:      m.PluginName,
		Name:            cfg.Name(),
		ModuleName:      cfg.Module(),
		FullName:        cfg.FullName(),
		UpdateEvery:     cfg.UpdateEvery(),
		AutoDetectEvery: cfg.AutoDetectionRetry(),
		Priority:        cfg.Priority(),
		Labels:          cfg.Labels(),
		Module:          mod,
		Out:             m.Out,
	}), nil
}

func (m *Manager) cleanup() {
	m.mu.Lock()
	for hash, task := range m.retrying {
		task.cancel()
		delete(m.retrying, hash)
	}
	m.mu.Unlock()

	for _, name := range m.stopRunningJobs() {
		m.FileLock.Unlock(name)
	}
}

func runRetryTask(ctx context.Context, out chan<- confgroup.Config, cfg confgroup.Config, timeout time.Duration) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
		sendConfig(ctx, out, cfg)
	}
}

func sendConfigs(ctx context.Context, out chan<- confgroup.Config, cfgs []confgroup.Config) {
	for _, cfg := range cfgs {
		sendConfig(ctx, out, cfg)
	}
}

func sendConfig(ctx context.Context, out chan<- confgroup.Config, cfg confgroup.Config) {
	select {
	case <-ctx.Done():
	case out <- cfg:
	}
}

// BuildModule creates the config's module and applies the job config to it.
func BuildModule(modules module.Registry, cfg confgroup.Config) (module.Module, error) {
	creator, ok := modules.Lookup(cfg.Module())
	if !ok {
		return nil, fmt.Errorf("can not find %s module", cfg.Module())
	}

	mod := creator.Create()
	if err := applyConfig(cfg.Public(), mod); err != nil {
		return nil, fmt.Errorf("apply %s config: %v", cfg, err)
	}
	return mod, nil
}

// applyConfig decodes the job config into the module through a YAML round trip.
func applyConfig(cfg confgroup.Config, mod any) error {
	bs, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bs, mod)
}

func isTooManyOpenFiles(err error) bool {
	return err != nil && strings.Contains(err.Error(), "too many open files")
}
