package session

import (
	"context"
	"testing"
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	writes [][]byte
}

func (f *fakeConn) ReadMessage() (int, []byte, error)       { return 0, nil, nil }
func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}
func (f *fakeConn) SetReadDeadline(time.Time) error        { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error        { return nil }
func (f *fakeConn) SetReadLimit(int64)                      {}
func (f *fakeConn) SetPongHandler(func(string) error)       {}
func (f *fakeConn) Close() error                            { return nil }

func newTestSession() (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := New("s1", conn, Config{SendQueueMax: 3}, zap.NewNop().Sugar())
	s.setState(StateOpenSession)
	return s, conn
}

func TestEnqueueDropsOldestOnOverflow(t *testing.T) {
	s, _ := newTestSession()
	assert.False(t, s.Enqueue([]byte("1")))
	assert.False(t, s.Enqueue([]byte("2")))
	assert.False(t, s.Enqueue([]byte("3")))
	dropped := s.Enqueue([]byte("4"))
	assert.True(t, dropped)

	var got []string
	for {
		select {
		case f := <-s.sendQueue:
			got = append(got, string(f))
			continue
		default:
		}
		break
	}
	assert.Equal(t, []string{"2", "3", "4"}, got)
}

func TestEnqueueDuringRecoveryBuffersInstead(t *testing.T) {
	s, _ := newTestSession()
	s.recovery.EnterRecovery()
	s.Enqueue([]byte("a"))
	s.Enqueue([]byte("b"))

	assert.Equal(t, 2, s.recovery.PendingCount())
	assert.Equal(t, 0, len(s.sendQueue))
}

func TestFlushPendingWritesInFIFOOrder(t *testing.T) {
	s, conn := newTestSession()
	s.recovery.Buffer([]byte("f1"))
	s.recovery.Buffer([]byte("f2"))
	s.recovery.Buffer([]byte("f3"))

	require.NoError(t, s.FlushPending())
	require.Len(t, conn.writes, 3)
	assert.Equal(t, "f1", string(conn.writes[0]))
	assert.Equal(t, "f2", string(conn.writes[1]))
	assert.Equal(t, "f3", string(conn.writes[2]))
	assert.Zero(t, s.recovery.PendingCount())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Timeout: 50 * time.Millisecond})
	for i := 0; i < 3; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow()) // transitions to half-open
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBackoffDelayFormula(t *testing.T) {
	cfg := ReconnectConfig{BaseDelay: time.Second, BackoffMultiplier: 2, MaxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, BackoffDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, BackoffDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, BackoffDelay(cfg, 3))
	assert.Equal(t, 10*time.Second, BackoffDelay(cfg, 10)) // capped at MaxDelay
}

func TestReconnectAbandonedBeyondMaxAttempts(t *testing.T) {
	r := NewRecoveryState(ReconnectConfig{MaxAttempts: 2})
	_, abandoned := r.NextAttempt()
	assert.False(t, abandoned)
	_, abandoned = r.NextAttempt()
	assert.False(t, abandoned)
	_, abandoned = r.NextAttempt()
	assert.True(t, abandoned)
}

func TestAttemptReconnectFlushesPendingAndReopens(t *testing.T) {
	s, _ := newTestSession()
	s.recovery.EnterRecovery()
	s.setState(StateRecovering)
	s.Enqueue([]byte("queued-during-recovery"))

	newConn := &fakeConn{}
	err := s.AttemptReconnect(context.Background(), func(context.Context) (Conn, error) {
		return newConn, nil
	})
	require.NoError(t, err)

	assert.Equal(t, StateOpenSession, s.State())
	assert.False(t, s.recovery.IsRecovering())
	require.Len(t, newConn.writes, 1)
	assert.Equal(t, "queued-during-recovery", string(newConn.writes[0]))
}

func TestAttemptReconnectAbandonsBeyondMaxAttempts(t *testing.T) {
	s, _ := newTestSession()
	s.cfg.Reconnect = ReconnectConfig{MaxAttempts: 2}
	s.recovery = NewRecoveryState(s.cfg.Reconnect)
	s.recovery.EnterRecovery()

	failDial := func(context.Context) (Conn, error) { return nil, assert.AnError }
	require.Error(t, s.AttemptReconnect(context.Background(), failDial))
	require.Error(t, s.AttemptReconnect(context.Background(), failDial))

	err := s.AttemptReconnect(context.Background(), failDial)
	assert.ErrorIs(t, err, errs.ErrReconnectAbandoned)
}
