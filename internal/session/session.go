package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/rclabs/etlmonitor/internal/message"
	"go.uber.org/zap"
)

// State is the session lifecycle state named in §4.5: handshaking -> open
// -> recovering -> open (loop) or -> closing -> closed.
type State string

const (
	StateHandshaking State = "handshaking"
	StateOpenSession State = "open"
	StateRecovering  State = "recovering"
	StateClosing     State = "closing"
	StateClosed      State = "closed"
)

// Config bundles the per-session tunables from §4.5.
type Config struct {
	SendQueueMax        int                  `mapstructure:"send_queue_max"`
	EnableHeartbeat     bool                 `mapstructure:"enable_heartbeat"`
	HeartbeatInterval   time.Duration        `mapstructure:"heartbeat_interval"`
	MaxMissedHeartbeats int                  `mapstructure:"max_missed_heartbeats"`
	EnableAutoReconnect bool                 `mapstructure:"enable_auto_reconnect"`
	Breaker             CircuitBreakerConfig `mapstructure:"breaker"`
	Reconnect           ReconnectConfig      `mapstructure:"reconnect"`
	WriteWait           time.Duration        `mapstructure:"write_wait"`
	PongWait            time.Duration        `mapstructure:"pong_wait"`
}

func (c Config) withDefaults() Config {
	if c.SendQueueMax <= 0 {
		c.SendQueueMax = 256
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.MaxMissedHeartbeats <= 0 {
		c.MaxMissedHeartbeats = 3
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	return c
}

// Conn is the narrow slice of *websocket.Conn the session drives,
// allowing tests to substitute a fake transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one pool member's full WebSocket lifecycle.
type Session struct {
	ID     string
	logger *zap.SugaredLogger
	cfg    Config

	connMu sync.RWMutex
	conn   Conn

	breaker  *CircuitBreaker
	recovery *RecoveryState
	dialer   func(ctx context.Context) (Conn, error)

	filterMu sync.RWMutex
	filters  message.Filters

	sendQueue chan []byte
	closeOnce sync.Once

	stateMu sync.Mutex
	state   State

	lastActivity sync.Map // single key "t" -> time.Time, avoids a bare mutex for one field
}

// New builds a Session wrapping conn. Sessions are created on handshake
// accept and destroyed once closed and dropped by the pool, per §3.1.
func New(id string, conn Conn, cfg Config, logger *zap.SugaredLogger) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	cfg = cfg.withDefaults()
	s := &Session{
		ID:        id,
		logger:    logger,
		conn:      conn,
		cfg:       cfg,
		breaker:   NewCircuitBreaker(cfg.Breaker),
		recovery:  NewRecoveryState(cfg.Reconnect),
		filters:   message.NewFilters(),
		sendQueue: make(chan []byte, cfg.SendQueueMax),
		state:     StateHandshaking,
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActivity.Store("t", time.Now())
}

// currentConn returns the session's active transport.
func (s *Session) currentConn() Conn {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn
}

// setConn swaps the session's active transport, used after a successful
// reconnect.
func (s *Session) setConn(c Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn = c
}

// LastActivity returns the last time the session read or wrote a frame.
func (s *Session) LastActivity() time.Time {
	v, ok := s.lastActivity.Load("t")
	if !ok {
		return time.Time{}
	}
	return v.(time.Time)
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// MarkOpen transitions a handshaking session to open, once the upgrade
// completes successfully.
func (s *Session) MarkOpen() {
	s.setState(StateOpenSession)
}

// IsOpen reports whether the session's open-flag still permits traffic.
func (s *Session) IsOpen() bool {
	st := s.State()
	return st == StateOpenSession || st == StateRecovering
}

// BreakerOpen reports whether the session's circuit breaker currently has
// traffic blocked, per §3.1's breaker states. Half-open counts as not
// open since it still allows a probe through.
func (s *Session) BreakerOpen() bool {
	return s.breaker.State() == StateOpen
}

// SetDialer installs the redial callback AttemptReconnect uses once a
// missed-heartbeat streak enters recovery, when cfg.EnableAutoReconnect
// is set. Unset by default, which leaves
// EnterRecovery's effect permanent until the session is closed — matching
// callers that manage reconnection themselves.
func (s *Session) SetDialer(dial func(ctx context.Context) (Conn, error)) {
	s.dialer = dial
}

// SetFilters replaces the session's ConnectionFilters atomically. Takes
// effect for every message whose enqueue-time strictly follows this
// call's completion, per §8 invariant 6.
func (s *Session) SetFilters(f message.Filters) {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	s.filters = f
}

// Filters returns a read-only snapshot of the session's current filters,
// observed by the broadcaster under a shared lock per §3.1.
func (s *Session) Filters() message.Filters {
	s.filterMu.RLock()
	defer s.filterMu.RUnlock()
	return s.filters
}

// Enqueue posts an encoded frame onto the session's send queue. A full
// queue drops the oldest entry and reports dropped=true, matching §4.5's
// hard-cap-with-oldest-drop discipline. If the session is recovering,
// the frame instead joins the RecoveryState pending buffer.
func (s *Session) Enqueue(frame []byte) (dropped bool) {
	if s.recovery.IsRecovering() {
		return s.recovery.Buffer(frame)
	}
	select {
	case s.sendQueue <- frame:
		return false
	default:
	}
	// Queue full: drop the oldest queued frame to admit this one.
	select {
	case <-s.sendQueue:
		dropped = true
	default:
	}
	select {
	case s.sendQueue <- frame:
	default:
		dropped = true
	}
	return dropped
}

// PendingQueueLen reports how many frames currently sit in the send
// queue, for stats surfaces and tests.
func (s *Session) PendingQueueLen() int {
	return len(s.sendQueue)
}

// SendDirect writes frame immediately, honoring the circuit breaker.
// Used by the broadcaster's SendDirect path, which bypasses the queue.
func (s *Session) SendDirect(frame []byte) error {
	if !s.breaker.Allow() {
		return errs.ErrCircuitOpen
	}
	if err := s.writeFrame(frame); err != nil {
		s.breaker.RecordFailure()
		return err
	}
	s.breaker.RecordSuccess()
	return nil
}

func (s *Session) writeFrame(frame []byte) error {
	conn := s.currentConn()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errs.Wrap(err, "write frame")
	}
	s.touch()
	return nil
}

// Close transitions the session through closing -> closed exactly once,
// regardless of how many callers invoke it.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		close(s.sendQueue)
		_ = s.currentConn().Close()
		s.setState(StateClosed)
	})
}
