// Package cache implements the Cache Manager with Warmup (§4.4): a
// namespaced, tagged, TTL-bounded cache plus bounded batched warmup from
// an external store.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rclabs/etlmonitor/internal/locks"
)

// Tag is a named membership group an entry can belong to, used both for
// bulk invalidation and for default-TTL selection.
type Tag string

const (
	TagUser    Tag = "user"
	TagJob     Tag = "job"
	TagSession Tag = "session"
)

// Config holds the cache's tunables, including per-tag default TTLs and
// the warmup run's own bounds.
type Config struct {
	MaxEntries     int           `mapstructure:"max_entries"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	UserTTL        time.Duration `mapstructure:"user_ttl"`
	JobTTL         time.Duration `mapstructure:"job_ttl"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	HealthCheckTTL time.Duration `mapstructure:"health_check_ttl"`
	EnableWarmup   bool          `mapstructure:"enable_warmup"`

	WarmupMaxKeys      int           `mapstructure:"warmup_max_keys"`
	WarmupBatchSize    int           `mapstructure:"warmup_batch_size"`
	WarmupBatchTimeout time.Duration `mapstructure:"warmup_batch_timeout"`
	WarmupTotalTimeout time.Duration `mapstructure:"warmup_total_timeout"`
}

func (c Config) withWarmupDefaults() Config {
	if c.WarmupMaxKeys <= 0 {
		c.WarmupMaxKeys = 100
	}
	if c.WarmupBatchSize <= 0 {
		c.WarmupBatchSize = 10
	}
	if c.WarmupBatchTimeout <= 0 {
		c.WarmupBatchTimeout = 5 * time.Second
	}
	if c.WarmupTotalTimeout <= 0 {
		c.WarmupTotalTimeout = 60 * time.Second
	}
	return c
}

// WarmupConfig builds the bounded run parameters for Warmup from cfg's
// own tunables, applying the package defaults to anything left unset.
func (c Config) WarmupConfig() WarmupConfig {
	c = c.withWarmupDefaults()
	return WarmupConfig{
		MaxKeys:      c.WarmupMaxKeys,
		BatchSize:    c.WarmupBatchSize,
		BatchTimeout: c.WarmupBatchTimeout,
		TotalTimeout: c.WarmupTotalTimeout,
	}
}

func (c Config) ttlFor(tags []Tag) time.Duration {
	for _, t := range tags {
		switch t {
		case TagUser:
			return orDefault(c.UserTTL, c.DefaultTTL)
		case TagJob:
			return orDefault(c.JobTTL, c.DefaultTTL)
		case TagSession:
			return orDefault(c.SessionTTL, c.DefaultTTL)
		}
	}
	return c.DefaultTTL
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

type entry struct {
	value     any
	tags      []Tag
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Backend is the external store a cache pings for health and warms up
// from — the narrow collaborator contract described in §6.
type Backend interface {
	Ping() error
}

// AccessRecorder is an optional Backend capability: a store that wants to
// learn about every Put so it can serve better warmup candidates later
// implements this alongside Backend. Put type-asserts for it rather than
// widening Backend itself, since most deployments have no use for it.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, key string, tag Tag, payload []byte) error
}

// Manager is the Cache Manager. It is safe for concurrent use; the map
// and tag index share one CONTAINER-level shared mutex per §5's
// shared-resource policy.
type Manager struct {
	cfg     Config
	backend Backend

	mu       *locks.RWMutex
	lockReg  *locks.Registry
	store    *lru.Cache[string, entry]
	tagIndex map[Tag]map[string]struct{}

	hits   atomic.Int64
	misses atomic.Int64

	healthMu        sync.Mutex
	lastHealthCheck time.Time
	lastHealthy     bool
}

// New builds a Manager. backend may be nil; in that case isEnabled
// reports cfg.EnableWarmup and isHealthy always reports true (there is
// nothing to fail).
func New(cfg Config, backend Backend, lockReg *locks.Registry) (*Manager, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	store, err := lru.New[string, entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		backend:  backend,
		mu:       locks.NewRWMutex(locks.LevelContainer, "cache"),
		lockReg:  lockReg,
		store:    store,
		tagIndex: make(map[Tag]map[string]struct{}),
	}, nil
}

// Put stores value under key with the given tags. ttl, if zero, is
// chosen by the first tag in tags that is user, job or session (in the
// order the tags are listed), falling back to DefaultTTL, per §4.4. Put
// is idempotent: re-putting an existing key
// replaces its value, tags and expiry.
func (m *Manager) Put(key string, value any, tags []Tag, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.cfg.ttlFor(tags)
	}
	g, err := locks.AcquireExclusive(m.mu, locks.Options{Name: "cache"}, m.lockReg)
	if err != nil {
		return err
	}

	m.removeFromTagIndexLocked(key)
	m.store.Add(key, entry{value: value, tags: tags, expiresAt: time.Now().Add(ttl)})
	for _, t := range tags {
		if m.tagIndex[t] == nil {
			m.tagIndex[t] = make(map[string]struct{})
		}
		m.tagIndex[t][key] = struct{}{}
	}
	g.Release()

	m.recordAccess(key, tags, value)
	return nil
}

// recordAccess notifies the backend of this Put if it implements
// AccessRecorder, so future warmups can favor recently-hot keys. Best
// effort: a marshal or store failure here never fails the Put itself.
func (m *Manager) recordAccess(key string, tags []Tag, value any) {
	recorder, ok := m.backend.(AccessRecorder)
	if !ok {
		return
	}
	var tag Tag
	if len(tags) > 0 {
		tag = tags[0]
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = recorder.RecordAccess(context.Background(), key, tag, payload)
}

// Get returns the value for key, or ok=false on miss or lazy expiry.
func (m *Manager) Get(key string) (value any, ok bool) {
	g, err := locks.AcquireShared(m.mu, locks.Options{Name: "cache"}, m.lockReg)
	if err != nil {
		return nil, false
	}
	defer g.Release()

	e, found := m.store.Get(key)
	if !found || e.expired(time.Now()) {
		m.misses.Add(1)
		return nil, false
	}
	m.hits.Add(1)
	return e.value, true
}

// Invalidate removes key, if present, along with its tag memberships.
func (m *Manager) Invalidate(key string) {
	g, err := locks.AcquireExclusive(m.mu, locks.Options{Name: "cache"}, m.lockReg)
	if err != nil {
		return
	}
	defer g.Release()
	m.removeFromTagIndexLocked(key)
	m.store.Remove(key)
}

// InvalidateByTag removes every entry carrying tag.
func (m *Manager) InvalidateByTag(tag Tag) {
	m.InvalidateByTags([]Tag{tag})
}

// InvalidateByTags removes every entry carrying any of tags.
func (m *Manager) InvalidateByTags(tags []Tag) {
	g, err := locks.AcquireExclusive(m.mu, locks.Options{Name: "cache"}, m.lockReg)
	if err != nil {
		return
	}
	defer g.Release()

	seen := make(map[string]struct{})
	for _, t := range tags {
		for key := range m.tagIndex[t] {
			seen[key] = struct{}{}
		}
	}
	for key := range seen {
		m.removeFromTagIndexLocked(key)
		m.store.Remove(key)
	}
}

// removeFromTagIndexLocked drops key from every tag set. Caller must
// already hold m.mu exclusively.
func (m *Manager) removeFromTagIndexLocked(key string) {
	e, ok := m.store.Peek(key)
	if !ok {
		return
	}
	for _, t := range e.tags {
		delete(m.tagIndex[t], key)
		if len(m.tagIndex[t]) == 0 {
			delete(m.tagIndex, t)
		}
	}
}

// IsEnabled reports whether warmup is configured on for this cache.
func (m *Manager) IsEnabled() bool {
	return m.cfg.EnableWarmup
}

// IsHealthy pings the backend no more than once per HealthCheckTTL,
// coalescing concurrent callers onto the same cached result.
func (m *Manager) IsHealthy() bool {
	if m.backend == nil {
		return true
	}
	m.healthMu.Lock()
	defer m.healthMu.Unlock()

	ttl := m.cfg.HealthCheckTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if time.Since(m.lastHealthCheck) < ttl {
		return m.lastHealthy
	}
	m.lastHealthCheck = time.Now()
	m.lastHealthy = m.backend.Ping() == nil
	return m.lastHealthy
}

// Stats returns the cache's hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

func (m *Manager) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}
