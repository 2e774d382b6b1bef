package locks

import (
	"fmt"
	"sync/atomic"

	deadlock "github.com/sasha-s/go-deadlock"
)

var mutexCounter int64

func nextID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, atomic.AddInt64(&mutexCounter, 1))
}

// Mutex is an exclusive lock carrying a fixed Level. The underlying
// deadlock.Mutex gives every acquisition go-deadlock's own watchdog (logs
// if a single Lock call itself stalls past its internal threshold) on top
// of this package's level-order enforcement and bounded-timeout polling.
type Mutex struct {
	level Level
	id    string
	name  string
	mu    deadlock.Mutex
}

// NewMutex creates a named mutex at the given level. name is used only
// for diagnostics (registry keys, log fields); it need not be unique.
func NewMutex(level Level, name string) *Mutex {
	return &Mutex{level: level, id: nextID("mutex"), name: name}
}

func (m *Mutex) Level() Level  { return m.level }
func (m *Mutex) ID() string    { return m.id }
func (m *Mutex) Name() string  { return m.name }
func (m *Mutex) tryLock() bool { return m.mu.TryLock() }
func (m *Mutex) unlock()       { m.mu.Unlock() }

// RWMutex is a shared/exclusive lock carrying a fixed Level, for the
// reader-writer variant described in §4.1.
type RWMutex struct {
	level Level
	id    string
	name  string
	mu    deadlock.RWMutex
}

func NewRWMutex(level Level, name string) *RWMutex {
	return &RWMutex{level: level, id: nextID("rwmutex"), name: name}
}

func (m *RWMutex) Level() Level   { return m.level }
func (m *RWMutex) ID() string     { return m.id }
func (m *RWMutex) Name() string   { return m.name }
func (m *RWMutex) tryLock() bool  { return m.mu.TryLock() }
func (m *RWMutex) unlock()        { m.mu.Unlock() }
func (m *RWMutex) tryRLock() bool { return m.mu.TryRLock() }
func (m *RWMutex) runlock()       { m.mu.RUnlock() }
