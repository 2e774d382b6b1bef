package metrics

import (
	"os"

	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/shirou/gopsutil/v3/process"
)

// GaugeReader samples the process's current memory (MB) and CPU percent,
// the inputs §4.6 calls memoryMB/cpuPct. Collector calls it once per
// snapshot rather than per counter update, since it is a syscall.
type GaugeReader struct {
	proc *process.Process
}

// NewGaugeReader opens a gopsutil handle on the current process, mirroring
// getMemoryStats's per-platform gopsutil/v3/mem use but scoped to this
// process rather than the whole machine, since §4.6's gauges feed a
// per-job efficiency score.
func NewGaugeReader() (*GaugeReader, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errs.Wrap(err, "open process handle for gauges")
	}
	return &GaugeReader{proc: p}, nil
}

// Read returns current resident memory in megabytes and CPU percent
// averaged over the process's lifetime (what gopsutil's
// Process.CPUPercent reports). Errors degrade to
// zero gauges rather than propagating — per §7, external subsystem
// failure degrades gracefully rather than reaching the broadcaster hot path.
func (g *GaugeReader) Read() (memoryMB, cpuPct float64) {
	if g == nil || g.proc == nil {
		return 0, 0
	}
	if mi, err := g.proc.MemoryInfo(); err == nil && mi != nil {
		memoryMB = float64(mi.RSS) / (1 << 20)
	}
	if pct, err := g.proc.CPUPercent(); err == nil {
		cpuPct = pct
	}
	return memoryMB, cpuPct
}
