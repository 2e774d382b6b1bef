package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/rclabs/etlmonitor/internal/message"
	"github.com/rclabs/etlmonitor/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu     []byte
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error)        { return 0, nil, nil }
func (c *fakeConn) WriteMessage(int, []byte) error           { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (c *fakeConn) SetReadLimit(int64)                        {}
func (c *fakeConn) SetPongHandler(func(string) error)         {}
func (c *fakeConn) Close() error                              { c.closed = true; return nil }

func newOpenSession(id string) *session.Session {
	s := session.New(id, &fakeConn{}, session.Config{SendQueueMax: 10}, zap.NewNop().Sugar())
	s.MarkOpen()
	return s
}

type fakePool struct {
	sessions map[string]*session.Session
}

func newFakePool(sessions ...*session.Session) *fakePool {
	m := make(map[string]*session.Session, len(sessions))
	for _, s := range sessions {
		m[s.ID] = s
	}
	return &fakePool{sessions: m}
}

func (p *fakePool) ActiveSessions() []*session.Session {
	out := make([]*session.Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	return out
}

func (p *fakePool) ByFilter(predicate func(*session.Session) bool) []*session.Session {
	var out []*session.Session
	for _, s := range p.sessions {
		if predicate(s) {
			out = append(out, s)
		}
	}
	return out
}

func (p *fakePool) Get(id string) (*session.Session, bool) {
	s, ok := p.sessions[id]
	return s, ok
}

func TestFanOutWithFilterMatch(t *testing.T) {
	a := newOpenSession("A")
	a.SetFilters(filtersWithJobs("J1"))
	b := newOpenSession("B")
	c := newOpenSession("C")
	c.SetFilters(filtersWithJobs("J2"))

	bc := New(Config{BatchSize: 10, ProcessingInterval: time.Millisecond}, newFakePool(a, b, c), zap.NewNop().Sugar(), nil)
	require.NoError(t, bc.PublishToJob(map[string]string{"status": "running"}, "J1"))

	bc.Flush()

	assert.EqualValues(t, 2, bc.Stats().MessagesSent)
	assert.Equal(t, 1, a.PendingQueueLen())
	assert.Equal(t, 1, b.PendingQueueLen())
	assert.Equal(t, 0, c.PendingQueueLen())
}

func filtersWithJobs(ids ...string) message.Filters {
	f := message.NewFilters()
	for _, id := range ids {
		f.JobIDs[id] = struct{}{}
	}
	return f
}

func TestQueueOverflowDropsLowestPriority(t *testing.T) {
	bc := New(Config{MaxQueueSize: 3, BatchSize: 10}, newFakePool(), zap.NewNop().Sugar(), nil)

	mk := func(prio int) message.Message {
		m, _ := message.New(message.KindJobStatusUpdate, nil, prio)
		return m
	}
	require.NoError(t, bc.Publish(mk(5)))
	require.NoError(t, bc.Publish(mk(1)))
	require.NoError(t, bc.Publish(mk(5)))
	require.NoError(t, bc.Publish(mk(5)))

	assert.EqualValues(t, 1, bc.Stats().MessagesDropped)
	assert.EqualValues(t, 3, bc.Stats().CurrentQueueSize)
}

func TestSendDirectBypassesFilters(t *testing.T) {
	s := newOpenSession("A")
	s.SetFilters(filtersWithJobs("nothing-matches"))

	bc := New(Config{}, newFakePool(s), zap.NewNop().Sugar(), nil)
	require.NoError(t, bc.SendDirect("A", map[string]string{"ping": "pong"}))
}

func TestSendDirectUnknownSession(t *testing.T) {
	bc := New(Config{}, newFakePool(), zap.NewNop().Sugar(), nil)
	err := bc.SendDirect("missing", nil)
	assert.Error(t, err)
}

func TestStartStopIsCooperative(t *testing.T) {
	bc := New(Config{ProcessingInterval: time.Millisecond}, newFakePool(), zap.NewNop().Sugar(), nil)
	ctx := context.Background()
	bc.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	bc.Stop()
	assert.Zero(t, bc.Stats().ActiveBroadcasts)
}
