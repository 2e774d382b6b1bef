// Package broadcaster implements the Message Broadcaster (§4.3):
// prioritized queueing and filtered fan-out of Messages to pool sessions.
package broadcaster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/rclabs/etlmonitor/internal/locks"
	"github.com/rclabs/etlmonitor/internal/message"
	"github.com/rclabs/etlmonitor/internal/metrics"
	"github.com/rclabs/etlmonitor/internal/session"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// PoolView is the narrow slice of the Connection Pool the broadcaster
// needs: a snapshot of sessions, optionally filtered, and direct lookup.
type PoolView interface {
	ActiveSessions() []*session.Session
	ByFilter(predicate func(*session.Session) bool) []*session.Session
	Get(id string) (*session.Session, bool)
}

// Config holds the broadcaster's tunables from §4.3.
type Config struct {
	MaxQueueSize            int           `mapstructure:"max_queue_size"`
	BatchSize               int           `mapstructure:"batch_size"`
	ProcessingInterval      time.Duration `mapstructure:"processing_interval"`
	MaxConcurrentBroadcasts int           `mapstructure:"max_concurrent_broadcasts"`
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 10_000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.ProcessingInterval <= 0 {
		c.ProcessingInterval = 10 * time.Millisecond
	}
	if c.MaxConcurrentBroadcasts <= 0 {
		c.MaxConcurrentBroadcasts = 10
	}
	return c
}

func (c Config) workerCount() int {
	if c.MaxConcurrentBroadcasts < 4 {
		return c.MaxConcurrentBroadcasts
	}
	return 4
}

// Stats is BroadcasterStats from §6.
type Stats struct {
	MessagesSent      int64
	MessagesQueued    int64
	MessagesDropped   int64
	CurrentQueueSize  int64
	ActiveBroadcasts  int64
	LastMessageSentAt time.Time
	MessagesPerSecond float64
}

// Broadcaster is the Message Broadcaster. Its queue is guarded by one
// STATE-level mutex per §5's shared-resource policy.
type Broadcaster struct {
	cfg     Config
	logger  *zap.SugaredLogger
	pool    PoolView
	lockReg *locks.Registry

	queueMu *locks.Mutex
	queue   *message.PriorityQueue

	sent, queued, dropped atomic.Int64
	lastSentAt            atomic.Int64 // unix nanos
	activeBroadcasts      atomic.Int64
	emaMu                 sync.Mutex
	emaRate               float64

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds a Broadcaster over poolView, which supplies session snapshots.
func New(cfg Config, poolView PoolView, logger *zap.SugaredLogger, lockReg *locks.Registry) *Broadcaster {
	return &Broadcaster{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		pool:    poolView,
		lockReg: lockReg,
		queueMu: locks.NewMutex(locks.LevelState, "broadcaster-queue"),
		queue:   message.NewPriorityQueue(),
	}
}

// Publish enqueues m. Non-blocking: when the queue is at MaxQueueSize the
// lowest-priority entry (which may be m itself) is dropped and counted,
// per §4.3's no-backpressure-on-producers rule. When m itself is the entry
// dropped, Publish returns errs.ErrQueueFull.
func (b *Broadcaster) Publish(m message.Message) error {
	g, err := locks.Acquire(b.queueMu, locks.Options{Name: "broadcaster-queue"}, b.lockReg)
	if err != nil {
		return err
	}
	defer g.Release()

	if b.queue.Len() >= b.cfg.MaxQueueSize {
		// Evict whichever entry — including the arrival itself — carries the
		// lowest priority, per §8 scenario 2.
		worstExisting, ok := b.peekWorstLocked()
		if ok && worstExisting.Message.Priority >= m.Priority {
			b.dropped.Add(1)
			return errs.ErrQueueFull
		}
		if _, ok := b.queue.Evict(); ok {
			b.dropped.Add(1)
		}
	}
	b.queue.Enqueue(m, time.Now())
	b.queued.Add(1)
	return nil
}

func (b *Broadcaster) peekWorstLocked() (*message.QueueEntry, bool) {
	entry, ok := b.queue.Evict()
	if !ok {
		return nil, false
	}
	b.queue.Enqueue(entry.Message, entry.EnqueuedAt)
	return entry, true
}

// PublishToJob wraps payload as a JobStatusUpdate targeting jobId.
func (b *Broadcaster) PublishToJob(payload any, jobID string) error {
	m, err := message.New(message.KindJobStatusUpdate, payload, 0)
	if err != nil {
		return err
	}
	m.TargetJobID = jobID
	return b.Publish(m)
}

// PublishLog wraps payload as a LogMessage targeting jobId and level.
func (b *Broadcaster) PublishLog(payload any, jobID string, level message.LogLevel) error {
	m, err := message.New(message.KindLogMessage, payload, 0)
	if err != nil {
		return err
	}
	m.TargetJobID = jobID
	m.TargetLevel = level
	return b.Publish(m)
}

// PublishMetrics wraps snapshot as a MetricsUpdate targeting jobId. This
// satisfies the metrics.Publisher interface.
func (b *Broadcaster) PublishMetrics(jobID string, snapshot metrics.Snapshot) error {
	m, err := message.New(message.KindMetricsUpdate, snapshot, 0)
	if err != nil {
		return err
	}
	m.TargetJobID = jobID
	return b.Publish(m)
}

// SendDirect bypasses filters and queueing, writing straight to sessionID.
func (b *Broadcaster) SendDirect(sessionID string, payload any) error {
	s, ok := b.pool.Get(sessionID)
	if !ok {
		return errs.ErrSessionNotFound
	}
	if !s.IsOpen() {
		return errs.ErrSessionClosed
	}
	m, err := message.New(message.KindSystemNotification, payload, 0)
	if err != nil {
		return err
	}
	frame, err := message.Encode(m)
	if err != nil {
		return err
	}
	return s.SendDirect(frame)
}

// BroadcastFiltered fans payload out to every session matching predicate,
// bypassing per-session ConnectionFilters.
func (b *Broadcaster) BroadcastFiltered(payload any, predicate func(*session.Session) bool) (sent int) {
	m, err := message.New(message.KindSystemNotification, payload, 0)
	if err != nil {
		return 0
	}
	frame, err := message.Encode(m)
	if err != nil {
		return 0
	}
	for _, s := range b.pool.ByFilter(predicate) {
		if dropped := s.Enqueue(frame); !dropped {
			sent++
		}
	}
	return sent
}

// Stats returns a snapshot of broadcaster statistics, §6's BroadcasterStats.
func (b *Broadcaster) Stats() Stats {
	b.emaMu.Lock()
	ema := b.emaRate
	b.emaMu.Unlock()

	var lastSent time.Time
	if ns := b.lastSentAt.Load(); ns != 0 {
		lastSent = time.Unix(0, ns)
	}
	return Stats{
		MessagesSent:      b.sent.Load(),
		MessagesQueued:    b.queued.Load(),
		MessagesDropped:   b.dropped.Load(),
		CurrentQueueSize:  int64(b.queue.Len()),
		ActiveBroadcasts:  b.activeBroadcasts.Load(),
		LastMessageSentAt: lastSent,
		MessagesPerSecond: ema,
	}
}

// Start launches the fan-out worker pool (count = min(maxConcurrentBroadcasts, 4)).
func (b *Broadcaster) Start(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	workers := b.cfg.workerCount()
	go func() {
		defer close(b.done)
		workerPool := pool.New().WithMaxGoroutines(workers)
		ticker := time.NewTicker(b.cfg.ProcessingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				workerPool.Wait()
				return
			case <-ticker.C:
				workerPool.Go(func() { b.runIteration() })
			}
		}
	}()
}

// Stop cooperatively stops the fan-out loop: running=false, wake
// workers, wait for activeBroadcasts==0, join.
func (b *Broadcaster) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.done != nil {
		<-b.done
	}
}

// Flush drains the queue synchronously, honoring filters, without
// waiting for the periodic worker loop.
func (b *Broadcaster) Flush() {
	for {
		n := b.runIteration()
		if n == 0 {
			return
		}
	}
}
