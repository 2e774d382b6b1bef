package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WarmupCandidate is one item the external store offers up for warming,
// carrying enough to build the cache key, value and tag set.
type WarmupCandidate struct {
	Key   string
	Value any
	Tags  []Tag
}

// WarmupSource is the narrow external-store collaborator warmup needs —
// the narrow contract described in §6 for the persistent store.
type WarmupSource interface {
	WarmupCandidates(ctx context.Context, max int) ([]WarmupCandidate, error)
}

// WarmupConfig bounds one warmup run per §4.4's algorithm.
type WarmupConfig struct {
	MaxKeys      int
	BatchSize    int
	BatchTimeout time.Duration
	TotalTimeout time.Duration
	// SafetyBound clamps MaxKeys regardless of configuration; zero means
	// the package default (10,000) applies.
	SafetyBound int
}

// WarmupResult reports what one warmup run accomplished.
type WarmupResult struct {
	Loaded     int64
	Errors     int64
	DurationMs int64
}

const defaultSafetyBound = 10_000

// clock abstracts time.Now/time.After so tests can control warmup pacing
// without sleeping for real durations (§8 scenario 4).
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Warmup runs the bounded, batched warmup algorithm against source,
// writing through Put for every candidate it manages to load before
// cfg.TotalTimeout elapses. It is a no-op if the cache's warmup is
// disabled. Already-dispatched batches are allowed to finish within
// their own BatchTimeout even after the total timeout fires.
func (m *Manager) Warmup(ctx context.Context, source WarmupSource, cfg WarmupConfig, logger *zap.SugaredLogger) WarmupResult {
	return m.warmup(ctx, source, cfg, logger, realClock{})
}

func (m *Manager) warmup(ctx context.Context, source WarmupSource, cfg WarmupConfig, logger *zap.SugaredLogger, clk clock) WarmupResult {
	if !m.IsEnabled() {
		return WarmupResult{}
	}
	start := clk.Now()

	maxKeys := cfg.MaxKeys
	bound := cfg.SafetyBound
	if bound <= 0 {
		bound = defaultSafetyBound
	}
	if maxKeys <= 0 || maxKeys > bound {
		maxKeys = bound
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	candidates, err := source.WarmupCandidates(ctx, maxKeys)
	if err != nil {
		logger.Warnw("warmup candidate query failed", "error", err)
		return WarmupResult{DurationMs: clk.Now().Sub(start).Milliseconds()}
	}
	if len(candidates) == 0 {
		return WarmupResult{DurationMs: clk.Now().Sub(start).Milliseconds()}
	}

	var loaded, errs atomic.Int64
	var wg sync.WaitGroup

	totalDeadline := cfg.TotalTimeout
	if totalDeadline <= 0 {
		totalDeadline = time.Minute
	}
	stop := clk.After(totalDeadline)
	limiter := rate.NewLimiter(rate.Every(time.Millisecond), 1)

dispatch:
	for i := 0; i < len(candidates); i += batchSize {
		select {
		case <-stop:
			break dispatch
		default:
		}
		_ = limiter.Wait(ctx)

		end := i + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[i:end]

		wg.Add(1)
		go func(batch []WarmupCandidate) {
			defer wg.Done()
			m.runBatch(batch, cfg.BatchTimeout, &loaded, &errs)
		}(batch)
	}

	wg.Wait()

	result := WarmupResult{
		Loaded:     loaded.Load(),
		Errors:     errs.Load(),
		DurationMs: clk.Now().Sub(start).Milliseconds(),
	}
	logger.Infow("warmup complete", "loaded", result.Loaded, "errors", result.Errors, "durationMs", result.DurationMs)
	return result
}

func (m *Manager) runBatch(batch []WarmupCandidate, timeout time.Duration, loaded, errs *atomic.Int64) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range batch {
			if err := m.Put(c.Key, c.Value, c.Tags, 0); err != nil {
				errs.Add(1)
				continue
			}
			loaded.Add(1)
		}
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
