// Package locks implements the ordered lock runtime: timeout-bounded,
// level-ordered mutexes with a per-goroutine held-lock tracker and a
// process-wide contention statistics registry. Acquisition never blocks
// unboundedly, and acquiring a lock at a level not strictly greater than
// one already held by the calling goroutine fails before any lock is
// attempted.
package locks

import "fmt"

// Level is the total order locks must be acquired in. A goroutine holding
// a lock at level L may only acquire further locks at a level > L.
type Level int

const (
	LevelConfig Level = iota + 1
	LevelContainer
	LevelResource
	LevelState
)

func (l Level) String() string {
	switch l {
	case LevelConfig:
		return "CONFIG"
	case LevelContainer:
		return "CONTAINER"
	case LevelResource:
		return "RESOURCE"
	case LevelState:
		return "STATE"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}
