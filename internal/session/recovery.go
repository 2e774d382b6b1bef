package session

import (
	"math"
	"sync"
	"time"
)

// ReconnectConfig bounds the exponential backoff schedule in §4.5.
type ReconnectConfig struct {
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	MessageQueueMax   int           `mapstructure:"message_queue_max"`
}

// BackoffDelay computes the delay for reconnect attempt N (1-indexed),
// per §8's boundary law: min(base * mult^(N-1), max).
func BackoffDelay(cfg ReconnectConfig, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	delay := float64(cfg.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 && time.Duration(delay) > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}

// RecoveryState tracks one session's reconnection bookkeeping: whether
// it is currently recovering, how many attempts it has made, heartbeat
// tracking, and a bounded, oldest-drop pending-message buffer.
type RecoveryState struct {
	cfg ReconnectConfig

	mu               sync.Mutex
	isRecovering     bool
	reconnectAttempt int
	missedHeartbeats int
	lastHeartbeat    time.Time
	lastReconnectAt  time.Time
	pending          [][]byte
}

func NewRecoveryState(cfg ReconnectConfig) *RecoveryState {
	if cfg.MessageQueueMax <= 0 {
		cfg.MessageQueueMax = 1000
	}
	return &RecoveryState{cfg: cfg, lastHeartbeat: time.Now()}
}

// EnterRecovery flips the session into recovering state.
func (r *RecoveryState) EnterRecovery() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isRecovering = true
}

// IsRecovering reports the current recovery flag.
func (r *RecoveryState) IsRecovering() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRecovering
}

// RecordHeartbeat resets the missed-heartbeat counter on evidence of
// liveness.
func (r *RecoveryState) RecordHeartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missedHeartbeats = 0
	r.lastHeartbeat = time.Now()
}

// MissHeartbeat increments the missed-heartbeat counter and reports
// whether the session has now reached maxMissed.
func (r *RecoveryState) MissHeartbeat(maxMissed int) (reachedMax bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missedHeartbeats++
	return r.missedHeartbeats >= maxMissed
}

// NextAttempt increments and returns the reconnect attempt counter, and
// reports whether the caller has exceeded maxAttempts and should give up.
func (r *RecoveryState) NextAttempt() (attempt int, abandoned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnectAttempt++
	r.lastReconnectAt = time.Now()
	if r.cfg.MaxAttempts > 0 && r.reconnectAttempt > r.cfg.MaxAttempts {
		return r.reconnectAttempt, true
	}
	return r.reconnectAttempt, false
}

// ResetOnSuccess clears recovery state after a successful reconnect or
// clean close, per §3.1's RecoveryState invariant.
func (r *RecoveryState) ResetOnSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isRecovering = false
	r.reconnectAttempt = 0
	r.missedHeartbeats = 0
}

// Buffer appends frame to the pending-message buffer, dropping the
// oldest entry if the buffer is already at its cap.
func (r *RecoveryState) Buffer(frame []byte) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) >= r.cfg.MessageQueueMax {
		r.pending = r.pending[1:]
		dropped = true
	}
	r.pending = append(r.pending, frame)
	return dropped
}

// Flush returns every buffered frame in FIFO order and empties the
// buffer, for replay on reconnect (§8 scenario 6).
func (r *RecoveryState) Flush() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.pending
	r.pending = nil
	return out
}

// PendingCount reports how many frames are currently buffered.
func (r *RecoveryState) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
