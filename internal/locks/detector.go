package locks

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// detectorEnabled gates level-order enforcement and held-lock tracking.
// On by default; benchmark paths can disable it with SetDetectorEnabled(false).
var detectorEnabled atomic.Bool

func init() {
	detectorEnabled.Store(true)
}

// SetDetectorEnabled toggles the deadlock detector globally.
func SetDetectorEnabled(enabled bool) {
	detectorEnabled.Store(enabled)
}

func DetectorEnabled() bool {
	return detectorEnabled.Load()
}

type heldLock struct {
	level  Level
	id     string
	name   string
	shared bool
}

var (
	heldMu sync.Mutex
	held   = map[int64][]heldLock{} // goroutine id -> stack of locks it holds
	owner  = map[string]int64{}     // lock id -> goroutine id currently holding it (exclusive or last reader)
	waitFor = map[int64]string{}    // goroutine id -> lock id it is currently blocked waiting for
)

func currentGoroutine() int64 {
	return goid.Get()
}

// maxHeldLevel returns the highest lock level the given goroutine
// currently holds, or 0 if it holds none.
func maxHeldLevel(gid int64) Level {
	heldMu.Lock()
	defer heldMu.Unlock()
	var max Level
	for _, h := range held[gid] {
		if h.level > max {
			max = h.level
		}
	}
	return max
}

// checkOrder reports whether acquiring a lock at level would violate the
// total order given what gid already holds.
func checkOrder(gid int64, level Level) bool {
	if !DetectorEnabled() {
		return true
	}
	return maxHeldLevel(gid) < level
}

func markWaiting(gid int64, lockID string) {
	if !DetectorEnabled() {
		return
	}
	heldMu.Lock()
	waitFor[gid] = lockID
	heldMu.Unlock()
}

func clearWaiting(gid int64) {
	if !DetectorEnabled() {
		return
	}
	heldMu.Lock()
	delete(waitFor, gid)
	heldMu.Unlock()
}

func pushHeld(gid int64, level Level, id, name string, shared bool) {
	if !DetectorEnabled() {
		return
	}
	heldMu.Lock()
	held[gid] = append(held[gid], heldLock{level: level, id: id, name: name, shared: shared})
	owner[id] = gid
	heldMu.Unlock()
}

func popHeld(gid int64, id string) {
	if !DetectorEnabled() {
		return
	}
	heldMu.Lock()
	defer heldMu.Unlock()
	locks := held[gid]
	for i := len(locks) - 1; i >= 0; i-- {
		if locks[i].id == id {
			held[gid] = append(locks[:i], locks[i+1:]...)
			break
		}
	}
	if len(held[gid]) == 0 {
		delete(held, gid)
	}
	if owner[id] == gid {
		delete(owner, id)
	}
}

// Cycle describes a detected two-goroutine wait-for inversion: gid A
// waits for a lock held by gid B, and B in turn waits for a lock held by
// A. This is a pairwise O(T^2) scan over currently-blocked goroutines,
// intentionally — a wait-for graph with proper cycle detection is the
// principled fix if profiling ever shows this scan matters, but the
// common case (a handful of blocked goroutines) makes the naive scan
// cheap in practice.
type Cycle struct {
	GoroutineA, GoroutineB int64
	LockA, LockB           string
}

// DetectCycles scans the current wait-for graph for two-party inversions
// and returns every one found. Intended to run periodically from a
// background goroutine, not on the hot acquisition path.
func DetectCycles() []Cycle {
	heldMu.Lock()
	defer heldMu.Unlock()

	var cycles []Cycle
	for gidA, lockA := range waitFor {
		holderA, ok := owner[lockA]
		if !ok || holderA == gidA {
			continue
		}
		lockB, blocked := waitFor[holderA]
		if !blocked {
			continue
		}
		holderB, ok := owner[lockB]
		if ok && holderB == gidA {
			cycles = append(cycles, Cycle{GoroutineA: gidA, GoroutineB: holderA, LockA: lockA, LockB: lockB})
		}
	}
	return cycles
}
