package locks

import (
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
)

const (
	// DefaultTimeout bounds any single acquisition when the caller doesn't specify one.
	DefaultTimeout = 5 * time.Second
	pollInterval   = 200 * time.Microsecond
)

// Guard is the RAII-style handle returned by a successful acquisition. It
// releases the underlying lock exactly once, from Release, regardless of
// how the caller's scope is exited.
type Guard struct {
	release func()
	done    bool
}

// Release unlocks the guarded mutex. Safe to call multiple times; only
// the first call has effect.
func (g *Guard) Release() {
	if g.done {
		return
	}
	g.done = true
	g.release()
}

// Options configures one acquisition attempt.
type Options struct {
	Timeout time.Duration // 0 means DefaultTimeout
	Name    string        // diagnostic name; defaults to the mutex's own Name()
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Acquire takes m exclusively, honoring level ordering and a bounded
// timeout. The registry receives one record per call regardless of
// outcome. An order violation is reported before any lock is attempted —
// the guard constructor fails with no side effects, per §4.1.
func Acquire(m *Mutex, opts Options, reg *Registry) (*Guard, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	name := opts.Name
	if name == "" {
		name = m.Name()
	}
	gid := currentGoroutine()

	if !checkOrder(gid, m.level) {
		reg.record(name, 0, false, false)
		return nil, errs.Wrapf(errs.ErrLockOrderViolation,
			"acquire %s (level %s) while holding level >= %s", name, m.level, m.level)
	}

	start := time.Now()
	deadline := start.Add(opts.timeout())
	contended := false
	for {
		if m.tryLock() {
			break
		}
		contended = true
		if time.Now().After(deadline) {
			clearWaiting(gid)
			reg.record(name, time.Since(start).Microseconds(), false, contended)
			return nil, errs.Wrapf(errs.ErrLockTimeout, "acquire %s after %s", name, opts.timeout())
		}
		markWaiting(gid, m.id)
		time.Sleep(pollInterval)
	}
	clearWaiting(gid)

	reg.record(name, time.Since(start).Microseconds(), true, contended)
	pushHeld(gid, m.level, m.id, name, false)

	return &Guard{release: func() {
		popHeld(gid, m.id)
		m.unlock()
	}}, nil
}

// AcquireShared takes m as a reader, with the same ordering and timeout
// contract as Acquire.
func AcquireShared(m *RWMutex, opts Options, reg *Registry) (*Guard, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	name := opts.Name
	if name == "" {
		name = m.Name() + ":shared"
	}
	gid := currentGoroutine()

	if !checkOrder(gid, m.level) {
		reg.record(name, 0, false, false)
		return nil, errs.Wrapf(errs.ErrLockOrderViolation,
			"acquire-shared %s (level %s) while holding level >= %s", name, m.level, m.level)
	}

	start := time.Now()
	deadline := start.Add(opts.timeout())
	contended := false
	for {
		if m.tryRLock() {
			break
		}
		contended = true
		if time.Now().After(deadline) {
			clearWaiting(gid)
			reg.record(name, time.Since(start).Microseconds(), false, contended)
			return nil, errs.Wrapf(errs.ErrLockTimeout, "acquire-shared %s after %s", name, opts.timeout())
		}
		markWaiting(gid, m.id)
		time.Sleep(pollInterval)
	}
	clearWaiting(gid)

	reg.record(name, time.Since(start).Microseconds(), true, contended)
	pushHeld(gid, m.level, m.id, name, true)

	return &Guard{release: func() {
		popHeld(gid, m.id)
		m.runlock()
	}}, nil
}

// AcquireExclusive takes m's RWMutex as a writer, sharing the contract of Acquire.
func AcquireExclusive(m *RWMutex, opts Options, reg *Registry) (*Guard, error) {
	if reg == nil {
		reg = DefaultRegistry
	}
	name := opts.Name
	if name == "" {
		name = m.Name()
	}
	gid := currentGoroutine()

	if !checkOrder(gid, m.level) {
		reg.record(name, 0, false, false)
		return nil, errs.Wrapf(errs.ErrLockOrderViolation,
			"acquire-exclusive %s (level %s) while holding level >= %s", name, m.level, m.level)
	}

	start := time.Now()
	deadline := start.Add(opts.timeout())
	contended := false
	for {
		if m.tryLock() {
			break
		}
		contended = true
		if time.Now().After(deadline) {
			clearWaiting(gid)
			reg.record(name, time.Since(start).Microseconds(), false, contended)
			return nil, errs.Wrapf(errs.ErrLockTimeout, "acquire-exclusive %s after %s", name, opts.timeout())
		}
		markWaiting(gid, m.id)
		time.Sleep(pollInterval)
	}
	clearWaiting(gid)

	reg.record(name, time.Since(start).Microseconds(), true, contended)
	pushHeld(gid, m.level, m.id, name, false)

	return &Guard{release: func() {
		popHeld(gid, m.id)
		m.unlock()
	}}, nil
}
