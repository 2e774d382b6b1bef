package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Publisher is the narrow view of the broadcaster the collector needs —
// publishing a MetricsUpdate for a job. Satisfied by *broadcaster.Broadcaster.
type Publisher interface {
	PublishMetrics(jobID string, snapshot Snapshot) error
}

// Collector owns one Counters per job and periodically snapshots and
// publishes each to a Publisher, per §4.6's "snapshot and publish".
type Collector struct {
	logger   *zap.SugaredLogger
	publish  Publisher
	gauges   *GaugeReader
	interval time.Duration

	mu   sync.RWMutex
	jobs map[string]*Counters

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

const defaultSnapshotInterval = 5 * time.Second

// New builds a Collector. gauges may be nil (memory/cpu efficiency read
// as zero, guarded out of the derived scores per §4.6).
func New(logger *zap.SugaredLogger, publish Publisher, gauges *GaugeReader, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	return &Collector{
		logger:   logger,
		publish:  publish,
		gauges:   gauges,
		interval: interval,
		jobs:     make(map[string]*Counters),
	}
}

// StartJob creates (or returns the existing) Counters for jobID.
func (c *Collector) StartJob(jobID string) *Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.jobs[jobID]; ok {
		return existing
	}
	counters := NewCounters(time.Now())
	c.jobs[jobID] = counters
	return counters
}

// Job returns the Counters for jobID, or nil if unknown.
func (c *Collector) Job(jobID string) *Counters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobs[jobID]
}

// EndJob removes jobID's counters from future snapshots. The caller
// should have already published a final snapshot if desired.
func (c *Collector) EndJob(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, jobID)
}

// Run starts the periodic snapshot/publish loop and blocks until ctx is
// cancelled or Stop is called.
func (c *Collector) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.runMu.Lock()
	c.cancel = cancel
	c.done = done
	c.runMu.Unlock()

	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.snapshotAndPublishAll()
		}
	}
}

// Stop cancels the collector's run loop and waits for it to exit. Safe to
// call before Run has started; it then simply has nothing to wait for.
func (c *Collector) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Collector) snapshotAndPublishAll() {
	var memMB, cpuPct float64
	if c.gauges != nil {
		memMB, cpuPct = c.gauges.Read()
	}

	c.mu.RLock()
	jobs := make(map[string]*Counters, len(c.jobs))
	for id, counters := range c.jobs {
		jobs[id] = counters
	}
	c.mu.RUnlock()

	for jobID, counters := range jobs {
		snap := counters.Capture(jobID, memMB, cpuPct)
		if c.publish == nil {
			continue
		}
		if err := c.publish.PublishMetrics(jobID, snap); err != nil {
			c.logger.Warnw("failed to publish metrics snapshot", "jobId", jobID, "error", err)
		}
	}
}
