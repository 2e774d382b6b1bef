package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rclabs/etlmonitor/internal/message"
)

const maxMessageSize = 1 << 20 // 1MB: control frames and filter updates only, not broadcast payloads

// ReadPump reads frames from the connection until the connection closes
// or ctx is cancelled, parsing control messages (filter updates) and
// ignoring unknown application messages, per §4.5's receive discipline.
// Inbound frames never block outbound frames: this runs on its own
// goroutine, separate from WritePump.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		s.Close()
	}()

	conn := s.currentConn()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		s.recovery.RecordHeartbeat()
		return s.currentConn().SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := s.currentConn().ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		s.touch()

		filters, decodeErr := message.DecodeFilters(data)
		if decodeErr != nil {
			// Not a filter update; unknown application messages are ignored.
			continue
		}
		s.SetFilters(filters)
	}
}

func (s *Session) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		s.logger.Warnw("session read error", "session_id", s.ID, "error", err)
	}
}

// WritePump drains the send queue and flushes RecoveryState's pending
// buffer in FIFO order after reconnection, writing at most one frame at
// a time and sending heartbeat pings on cfg.HeartbeatInterval.
func (s *Session) WritePump(ctx context.Context) {
	var ticker *time.Ticker
	if s.cfg.EnableHeartbeat {
		ticker = time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
	}
	defer s.currentConn().Close()

	var tickC <-chan time.Time
	if ticker != nil {
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.sendQueue:
			if !ok {
				conn := s.currentConn()
				_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.writeFrame(frame); err != nil {
				s.breaker.RecordFailure()
				return
			}
			s.breaker.RecordSuccess()
		case <-tickC:
			conn := s.currentConn()
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if s.recovery.MissHeartbeat(s.cfg.MaxMissedHeartbeats) && !s.recovery.IsRecovering() {
				s.recovery.EnterRecovery()
				s.setState(StateRecovering)
				if s.dialer != nil && s.cfg.EnableAutoReconnect {
					go s.runReconnectLoop(ctx)
				}
			}
		}
	}
}

// FlushPending drains RecoveryState's pending buffer onto the wire in
// FIFO order, used after a successful reconnect (§8 scenario 6).
func (s *Session) FlushPending() error {
	for _, frame := range s.recovery.Flush() {
		if err := s.writeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}
