package pool

import (
	"context"
	"time"
)

// StartMonitoring launches the periodic health-check/cleanup task at
// cfg.HealthCheckInterval, independent of the pool's own running state.
// A second call while already monitoring is a no-op.
func (p *Pool) StartMonitoring(ctx context.Context) {
	if p.monitorCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.monitorCancel = cancel
	p.monitorDone = make(chan struct{})

	go func() {
		defer close(p.monitorDone)
		ticker := time.NewTicker(p.cfg.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.PerformHealthCheck()
				if p.cfg.EnableCleanup {
					p.CleanupStale()
				}
			}
		}
	}()
}

// StopMonitoring stops the periodic task, if running, and waits for it
// to exit. Can be stopped/started independently of Start/Stop.
func (p *Pool) StopMonitoring() {
	if p.monitorCancel == nil {
		return
	}
	p.monitorCancel()
	<-p.monitorDone
	p.monitorCancel = nil
	p.monitorDone = nil
}
