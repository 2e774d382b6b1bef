package locks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCycleCheck periodically scans the wait-for graph and logs any
// two-party inversion it finds, until ctx is cancelled. It never blocks
// an acquisition — it only observes state already tracked by Acquire/
// AcquireShared/AcquireExclusive.
func RunCycleCheck(ctx context.Context, logger *zap.SugaredLogger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range DetectCycles() {
				logger.Warnw("potential lock-order cycle detected",
					"goroutine_a", c.GoroutineA,
					"goroutine_b", c.GoroutineB,
					"lock_a", c.LockA,
					"lock_b", c.LockB,
				)
			}
		}
	}
}
