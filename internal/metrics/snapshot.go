package metrics

import (
	"math"
	"time"
)

// Snapshot is an immutable, serialize-safe view of a job's metrics at one
// instant — counters plus the derived values recomputed from them and
// wall-clock only, per §3.1 and §4.6.
type Snapshot struct {
	JobID string

	RecordsProcessed  int64
	RecordsSuccessful int64
	RecordsFailed     int64
	Batches           int64
	BytesProcessed    int64

	MemoryMB float64
	CPUPct   float64

	ProcessingRate    float64
	ErrorRate         float64
	ThroughputMBps    float64
	MemoryEfficiency  float64
	CPUEfficiency     float64
	OverallEfficiency float64

	StartedAt        time.Time
	FirstErrorAt     *time.Time
	LastUpdatedAt    time.Time
	CapturedAt       time.Time
}

// overallEfficiency averages only the factors that actually have data,
// per §4.6: a job with no memory/CPU gauges yet still gets a meaningful
// score from processing rate and error rate alone instead of being
// dragged down by zeroed-out terms.
func overallEfficiency(processingRate, errorRate, memEff, cpuEff float64, processed int64) float64 {
	var overall float64
	var factors int
	if processingRate > 0 {
		overall += math.Min(1.0, processingRate/1000)
		factors++
	}
	if processed > 0 {
		overall += (100.0 - errorRate) / 100.0
		factors++
	}
	if memEff > 0 {
		overall += math.Min(1.0, memEff/1000)
		factors++
	}
	if cpuEff > 0 {
		overall += math.Min(1.0, cpuEff/100)
		factors++
	}
	if factors == 0 {
		return 0
	}
	return overall / float64(factors)
}

// Capture builds a Snapshot from c and the gauges supplied by the
// caller (memoryMB, cpuPct — sourced from gopsutil by the collector).
func (c *Counters) Capture(jobID string, memoryMB, cpuPct float64) Snapshot {
	now := time.Now()
	elapsed := now.Sub(c.startedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}

	processed := c.recordsProcessed.Load()
	failed := c.recordsFailed.Load()
	bytes := c.bytesProcessed.Load()

	var errorRate float64
	if processed > 0 {
		errorRate = float64(failed) / float64(processed) * 100
	}

	processingRate := float64(processed) / elapsed
	throughput := float64(bytes) / (elapsed * (1 << 20))

	var memEff float64
	if memoryMB > 0 {
		memEff = float64(processed) / memoryMB
	}
	var cpuEff float64
	if cpuPct > 0 {
		cpuEff = float64(processed) / cpuPct
	}

	overall := overallEfficiency(processingRate, errorRate, memEff, cpuEff, processed)

	var firstErr *time.Time
	if ns := c.firstErrorAt.Load(); ns != 0 {
		t := time.Unix(0, ns)
		firstErr = &t
	}

	return Snapshot{
		JobID:             jobID,
		RecordsProcessed:  processed,
		RecordsSuccessful: c.recordsSuccessful.Load(),
		RecordsFailed:     failed,
		Batches:           c.batches.Load(),
		BytesProcessed:    bytes,
		MemoryMB:          memoryMB,
		CPUPct:            cpuPct,
		ProcessingRate:    processingRate,
		ErrorRate:         errorRate,
		ThroughputMBps:    throughput,
		MemoryEfficiency:  memEff,
		CPUEfficiency:     cpuEff,
		OverallEfficiency: overall,
		StartedAt:         c.startedAt,
		FirstErrorAt:      firstErr,
		LastUpdatedAt:     time.Unix(0, c.lastUpdatedAt.Load()),
		CapturedAt:        now,
	}
}
