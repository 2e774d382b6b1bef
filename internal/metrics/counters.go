// Package metrics implements the Job Metrics Collector (§4.6): per-job
// lock-free counters and the derived efficiency metrics recomputed from
// them on a periodic snapshot.
package metrics

import (
	"sync/atomic"
	"time"
)

// Counters holds the monotonic, lock-free fields updated by worker
// goroutines. A zero Counters is ready to use.
type Counters struct {
	recordsProcessed  atomic.Int64
	recordsSuccessful atomic.Int64
	recordsFailed     atomic.Int64
	batches           atomic.Int64
	bytesProcessed    atomic.Int64

	startedAt     time.Time
	firstErrorAt  atomic.Int64 // unix nanos; 0 means unset
	lastUpdatedAt atomic.Int64 // unix nanos
}

// NewCounters returns Counters stamped with the current time as the job's
// start.
func NewCounters(startedAt time.Time) *Counters {
	c := &Counters{startedAt: startedAt}
	c.lastUpdatedAt.Store(startedAt.UnixNano())
	return c
}

func (c *Counters) touch() {
	c.lastUpdatedAt.Store(time.Now().UnixNano())
}

// RecordProcessed increments the processed-records counter by one.
func (c *Counters) RecordProcessed() {
	c.recordsProcessed.Add(1)
	c.touch()
}

// RecordSuccessful increments the successful-records counter by one.
func (c *Counters) RecordSuccessful() {
	c.recordsSuccessful.Add(1)
	c.touch()
}

// RecordFailed increments the failed-records counter by one, setting
// timeToFirstError exactly once — the instant failed first becomes 1.
func (c *Counters) RecordFailed() {
	if c.recordsFailed.Add(1) == 1 {
		c.firstErrorAt.CompareAndSwap(0, time.Now().UnixNano())
	}
	c.touch()
}

// RecordBatch folds one batch's outcome into the counters: ok and fail
// records processed, plus bytes moved.
func (c *Counters) RecordBatch(size int, ok, fail int, bytes int64) {
	c.batches.Add(1)
	c.recordsProcessed.Add(int64(size))
	c.recordsSuccessful.Add(int64(ok))
	if fail > 0 {
		if c.recordsFailed.Add(int64(fail)) <= int64(fail) {
			c.firstErrorAt.CompareAndSwap(0, time.Now().UnixNano())
		}
	}
	c.bytesProcessed.Add(bytes)
	c.touch()
}
