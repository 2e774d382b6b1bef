// Package pool implements the Connection Pool (§4.2): a bounded registry
// of active sessions with lifecycle, health and cleanup.
package pool

import (
	"context"
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/rclabs/etlmonitor/internal/locks"
	"github.com/rclabs/etlmonitor/internal/session"
	"go.uber.org/zap"
)

// RunState is the pool's own one-shot state machine: constructed ->
// running -> stopped.
type RunState int

const (
	RunStateConstructed RunState = iota
	RunStateRunning
	RunStateStopped
)

// Config holds the pool's tunables from §4.2.
type Config struct {
	MaxConnections      int           `mapstructure:"max_connections"`
	ConnectionTimeout   time.Duration `mapstructure:"connection_timeout"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	CleanupBatchSize    int           `mapstructure:"cleanup_batch_size"`
	EnableMonitoring    bool          `mapstructure:"enable_monitoring"`
	EnableCleanup       bool          `mapstructure:"enable_cleanup"`
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 1000
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = 60 * time.Second
	}
	if c.CleanupBatchSize <= 0 {
		c.CleanupBatchSize = 10
	}
	return c
}

// Stats is the derived, read-only view of pool size named PoolStats in §3.1.
type Stats struct {
	Total              int
	Active             int
	Inactive           int
	Healthy            int
	Unhealthy          int
	LastHealthCheckAt  time.Time
	LastCleanupAt      time.Time
}

// Pool is the Connection Pool. All mutations take its CONTAINER-level
// mutex exclusively; all reads take it shared, per §4.2's ordering rule.
type Pool struct {
	cfg     Config
	logger  *zap.SugaredLogger
	lockReg *locks.Registry

	mu       *locks.RWMutex
	sessions map[string]*session.Session

	runState RunState

	lastHealthCheckAt time.Time
	lastCleanupAt     time.Time

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New constructs a Pool in the "constructed" state. Call Start to accept
// sessions.
func New(cfg Config, logger *zap.SugaredLogger, lockReg *locks.Registry) *Pool {
	return &Pool{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		lockReg:  lockReg,
		mu:       locks.NewRWMutex(locks.LevelContainer, "pool"),
		sessions: make(map[string]*session.Session),
		runState: RunStateConstructed,
	}
}

// Start transitions constructed -> running. One-shot; calling it again
// is a no-op once running.
func (p *Pool) Start() {
	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return
	}
	defer g.Release()
	if p.runState == RunStateConstructed {
		p.runState = RunStateRunning
	}
}

// Stop transitions running -> stopped, closing every session. Terminal:
// restart requires a new Pool.
func (p *Pool) Stop() {
	p.StopMonitoring()

	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return
	}
	sessions := make([]*session.Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*session.Session)
	p.runState = RunStateStopped
	g.Release()

	for _, s := range sessions {
		s.Close()
	}
}

// Add registers s by its id. Fails with ErrPoolCapacityExceeded when the
// pool is at MaxConnections, ErrPoolNotRunning when not running,
// ErrInvalidSession when s is nil. Never duplicates an id: an id that is
// already registered fails with ErrDuplicateSession.
func (p *Pool) Add(s *session.Session) error {
	if s == nil {
		return errs.ErrInvalidSession
	}
	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return err
	}
	defer g.Release()

	if p.runState != RunStateRunning {
		return errs.ErrPoolNotRunning
	}
	if len(p.sessions) >= p.cfg.MaxConnections {
		return errs.ErrPoolCapacityExceeded
	}
	if _, exists := p.sessions[s.ID]; exists {
		return errs.ErrDuplicateSession
	}
	p.sessions[s.ID] = s
	return nil
}

// Remove drops id from the pool. Idempotent; no error if absent.
func (p *Pool) Remove(id string) {
	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return
	}
	defer g.Release()
	delete(p.sessions, id)
}

// Get returns the session registered under id, if any.
func (p *Pool) Get(id string) (*session.Session, bool) {
	g, err := locks.AcquireShared(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return nil, false
	}
	defer g.Release()
	s, ok := p.sessions[id]
	return s, ok
}

// Has reports whether id is currently registered.
func (p *Pool) Has(id string) bool {
	_, ok := p.Get(id)
	return ok
}

// ActiveSessions returns a snapshot of currently-open sessions. The
// pool's own view may change immediately after this call returns.
func (p *Pool) ActiveSessions() []*session.Session {
	return p.ByFilter(func(s *session.Session) bool { return s.IsOpen() })
}

// ByFilter returns a snapshot of sessions matching predicate. Never
// holds the pool's lock while invoking predicate against a session that
// might block: predicate should be cheap and non-blocking.
func (p *Pool) ByFilter(predicate func(*session.Session) bool) []*session.Session {
	g, err := locks.AcquireShared(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return nil
	}
	snapshot := make([]*session.Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		snapshot = append(snapshot, s)
	}
	g.Release()

	out := make([]*session.Session, 0, len(snapshot))
	for _, s := range snapshot {
		if predicate(s) {
			out = append(out, s)
		}
	}
	return out
}

// Stats computes PoolStats under a shared lock. Derived; never authoritative.
func (p *Pool) Stats() Stats {
	g, err := locks.AcquireShared(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return Stats{}
	}
	defer g.Release()

	stats := Stats{
		Total:             len(p.sessions),
		LastHealthCheckAt: p.lastHealthCheckAt,
		LastCleanupAt:     p.lastCleanupAt,
	}
	for _, s := range p.sessions {
		if s.IsOpen() {
			stats.Active++
		} else {
			stats.Inactive++
		}
		if p.isHealthy(s) {
			stats.Healthy++
		} else {
			stats.Unhealthy++
		}
	}
	return stats
}

func (p *Pool) isHealthy(s *session.Session) bool {
	if !s.IsOpen() {
		return false
	}
	if time.Since(s.LastActivity()) > p.cfg.ConnectionTimeout {
		return false
	}
	if s.BreakerOpen() {
		return false
	}
	return true
}

// CleanupStale removes up to cfg.CleanupBatchSize sessions whose last
// activity plus the connection timeout has passed, or whose open-flag is
// false. Not an error if zero are removed.
func (p *Pool) CleanupStale() int {
	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return 0
	}
	defer g.Release()

	removed := 0
	now := time.Now()
	for id, s := range p.sessions {
		if removed >= p.cfg.CleanupBatchSize {
			break
		}
		stale := !s.IsOpen() || now.Sub(s.LastActivity()) > p.cfg.ConnectionTimeout
		if stale {
			delete(p.sessions, id)
			removed++
		}
	}
	p.lastCleanupAt = now
	p.logger.Debugw("pool cleanup complete", "removed", removed)
	return removed
}

// PerformHealthCheck removes sessions failing isHealthy (open AND within
// timeout AND circuit not open) and updates lastHealthCheckAt.
func (p *Pool) PerformHealthCheck() int {
	g, err := locks.AcquireExclusive(p.mu, locks.Options{Name: "pool"}, p.lockReg)
	if err != nil {
		return 0
	}
	defer g.Release()

	removed := 0
	for id, s := range p.sessions {
		if !p.isHealthy(s) {
			delete(p.sessions, id)
			removed++
		}
	}
	p.lastHealthCheckAt = time.Now()
	return removed
}
