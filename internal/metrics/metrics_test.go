package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCountersAreMonotonic(t *testing.T) {
	c := NewCounters(time.Now())
	c.RecordProcessed()
	c.RecordProcessed()
	c.RecordSuccessful()
	c.RecordFailed()

	snap := c.Capture("job-1", 0, 0)
	assert.EqualValues(t, 2, snap.RecordsProcessed)
	assert.EqualValues(t, 1, snap.RecordsSuccessful)
	assert.EqualValues(t, 1, snap.RecordsFailed)
}

func TestTimeToFirstErrorSetOnce(t *testing.T) {
	c := NewCounters(time.Now())
	c.RecordFailed()
	first := c.firstErrorAt.Load()
	require.NotZero(t, first)

	time.Sleep(time.Millisecond)
	c.RecordFailed()
	assert.Equal(t, first, c.firstErrorAt.Load())
}

func TestErrorRateGuardsZeroProcessed(t *testing.T) {
	c := NewCounters(time.Now())
	snap := c.Capture("job-1", 0, 0)
	assert.Zero(t, snap.ErrorRate)
}

func TestEfficiencyGuardsZeroGauges(t *testing.T) {
	c := NewCounters(time.Now())
	c.RecordProcessed()
	snap := c.Capture("job-1", 0, 0)
	assert.Zero(t, snap.MemoryEfficiency)
	assert.Zero(t, snap.CPUEfficiency)
}

func TestOverallEfficiencyAveragesOnlyPresentFactors(t *testing.T) {
	// processing rate clamps to 1.0, error rate contributes 0.75, memory
	// and CPU gauges absent: average of the two present factors.
	got := overallEfficiency(5000, 25, 0, 0, 100)
	assert.InDelta(t, (1.0+0.75)/2, got, 1e-9)
}

func TestOverallEfficiencyIncludesMemoryAndCPU(t *testing.T) {
	got := overallEfficiency(500, 0, 2000, 50, 100)
	want := (0.5 + 1.0 + 1.0 + 0.5) / 4
	assert.InDelta(t, want, got, 1e-9)
}

func TestOverallEfficiencyZeroWhenNoFactors(t *testing.T) {
	assert.Zero(t, overallEfficiency(0, 0, 0, 0, 0))
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []Snapshot
}

func (f *fakePublisher) PublishMetrics(jobID string, snapshot Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, snapshot)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCollectorPublishesPeriodically(t *testing.T) {
	pub := &fakePublisher{}
	collector := New(zap.NewNop().Sugar(), pub, nil, 10*time.Millisecond)
	collector.StartJob("job-1").RecordProcessed()

	ctx, cancel := context.WithCancel(context.Background())
	go collector.Run(ctx)

	require.Eventually(t, func() bool { return pub.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	collector.Stop()
}
