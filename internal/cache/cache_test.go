package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return m
}

func TestPutGetRoundTrip(t *testing.T) {
	m := newTestManager(t, Config{DefaultTTL: time.Minute})
	require.NoError(t, m.Put("k1", "v1", nil, 0))

	v, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestGetMissIncrementsMissCounter(t *testing.T) {
	m := newTestManager(t, Config{DefaultTTL: time.Minute})
	_, ok := m.Get("missing")
	assert.False(t, ok)
	assert.EqualValues(t, 1, m.Stats().Misses)
}

func TestLazyExpiry(t *testing.T) {
	m := newTestManager(t, Config{DefaultTTL: time.Millisecond})
	require.NoError(t, m.Put("k1", "v1", nil, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := m.Get("k1")
	assert.False(t, ok)
}

func TestTagTTLSelection(t *testing.T) {
	cfg := Config{DefaultTTL: time.Second, UserTTL: time.Hour}
	m := newTestManager(t, cfg)
	require.NoError(t, m.Put("u1", "v", []Tag{TagUser}, 0))

	e, ok := m.store.Peek("u1")
	require.True(t, ok)
	assert.True(t, e.expiresAt.After(time.Now().Add(time.Minute)))
}

func TestInvalidateByTagRemovesAllMembers(t *testing.T) {
	m := newTestManager(t, Config{DefaultTTL: time.Minute})
	require.NoError(t, m.Put("a", 1, []Tag{TagJob}, 0))
	require.NoError(t, m.Put("b", 2, []Tag{TagJob}, 0))
	require.NoError(t, m.Put("c", 3, []Tag{TagUser}, 0))

	m.InvalidateByTag(TagJob)

	_, ok := m.Get("a")
	assert.False(t, ok)
	_, ok = m.Get("b")
	assert.False(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
}

type fakeBackend struct{ healthy bool }

func (f fakeBackend) Ping() error {
	if f.healthy {
		return nil
	}
	return errors.New("backend down")
}

type recordingBackend struct {
	fakeBackend
	recorded []string
}

func (r *recordingBackend) RecordAccess(_ context.Context, key string, tag Tag, payload []byte) error {
	r.recorded = append(r.recorded, key+":"+string(tag)+":"+string(payload))
	return nil
}

func TestPutNotifiesAccessRecorderBackend(t *testing.T) {
	backend := &recordingBackend{fakeBackend: fakeBackend{healthy: true}}
	m, err := New(Config{DefaultTTL: time.Minute}, backend, nil)
	require.NoError(t, err)

	require.NoError(t, m.Put("k1", map[string]int{"n": 1}, []Tag{TagJob}, 0))
	require.Len(t, backend.recorded, 1)
	assert.Contains(t, backend.recorded[0], "k1:job:")
}

func TestPutToleratesBackendWithoutAccessRecorder(t *testing.T) {
	m, err := New(Config{DefaultTTL: time.Minute}, fakeBackend{healthy: true}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Put("k1", 1, nil, 0))
}

func TestIsHealthyCoalescesWithinTTL(t *testing.T) {
	m, err := New(Config{DefaultTTL: time.Minute, HealthCheckTTL: time.Hour}, fakeBackend{healthy: true}, nil)
	require.NoError(t, err)

	assert.True(t, m.IsHealthy())
	m.backend = fakeBackend{healthy: false}
	// Within HealthCheckTTL, the cached result is reused.
	assert.True(t, m.IsHealthy())
}

type fakeSource struct {
	candidates []WarmupCandidate
}

func (f *fakeSource) WarmupCandidates(ctx context.Context, max int) ([]WarmupCandidate, error) {
	if len(f.candidates) > max {
		return f.candidates[:max], nil
	}
	return f.candidates, nil
}

func TestWarmupConfigAppliesDefaults(t *testing.T) {
	cfg := Config{}.WarmupConfig()
	assert.Equal(t, 100, cfg.MaxKeys)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 60*time.Second, cfg.TotalTimeout)
}

func TestWarmupConfigHonorsOverrides(t *testing.T) {
	cfg := Config{
		WarmupMaxKeys:      25,
		WarmupBatchSize:    4,
		WarmupBatchTimeout: time.Second,
		WarmupTotalTimeout: 20 * time.Second,
	}.WarmupConfig()
	assert.Equal(t, 25, cfg.MaxKeys)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchTimeout)
	assert.Equal(t, 20*time.Second, cfg.TotalTimeout)
}

func TestWarmupRespectsTotalTimeout(t *testing.T) {
	candidates := make([]WarmupCandidate, 100)
	for i := range candidates {
		candidates[i] = WarmupCandidate{Key: rangeKey(i), Value: i, Tags: []Tag{TagJob}}
	}
	src := &fakeSource{candidates: candidates}

	m := newTestManager(t, Config{DefaultTTL: time.Minute, EnableWarmup: true})
	result := m.Warmup(context.Background(), src, WarmupConfig{
		MaxKeys:      100,
		BatchSize:    10,
		BatchTimeout: 2 * time.Second,
		TotalTimeout: 50 * time.Millisecond,
	}, zap.NewNop().Sugar())

	assert.LessOrEqual(t, result.Loaded, int64(100))
	assert.Zero(t, result.Errors)
}

// manualClock lets a test control exactly when the total-timeout fires,
// without depending on real sleep durations racing goroutine scheduling.
type manualClock struct {
	now   time.Time
	fired chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Now(), fired: make(chan time.Time, 1)}
}

func (c *manualClock) Now() time.Time { return c.now }
func (c *manualClock) After(d time.Duration) <-chan time.Time {
	return c.fired
}
func (c *manualClock) fire() { c.fired <- c.now }

func TestWarmupStopsDispatchingAfterTotalTimeoutFires(t *testing.T) {
	candidates := make([]WarmupCandidate, 30)
	for i := range candidates {
		candidates[i] = WarmupCandidate{Key: rangeKey(i), Value: i, Tags: []Tag{TagJob}}
	}
	src := &fakeSource{candidates: candidates}
	clk := newManualClock()
	clk.fire() // total timeout already elapsed before the first batch is dispatched

	m := newTestManager(t, Config{DefaultTTL: time.Minute, EnableWarmup: true})
	result := m.warmup(context.Background(), src, WarmupConfig{
		MaxKeys:      30,
		BatchSize:    10,
		BatchTimeout: time.Second,
		TotalTimeout: time.Millisecond,
	}, zap.NewNop().Sugar(), clk)

	assert.Zero(t, result.Loaded)
	assert.Zero(t, result.Errors)
}

func TestWarmupNoopWhenDisabled(t *testing.T) {
	m := newTestManager(t, Config{DefaultTTL: time.Minute, EnableWarmup: false})
	result := m.Warmup(context.Background(), &fakeSource{}, WarmupConfig{}, zap.NewNop().Sugar())
	assert.Zero(t, result.Loaded)
}

func rangeKey(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	return string(letters[i%len(letters)]) + string(rune('a'+i/len(letters)))
}
