package session

import (
	"context"
	"errors"
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
)

// AttemptReconnect drives the recovering -> open loop named in §4.5's state
// machine: it waits out the backoff for the next attempt, redials via
// dial, and on success resets recovery bookkeeping and replays whatever
// frames queued up while the connection was down. Returns
// errs.ErrReconnectAbandoned once the configured max attempts is exceeded
// without blocking further; runReconnectLoop, which WritePump starts on
// entering recovery, closes the session at that point.
func (s *Session) AttemptReconnect(ctx context.Context, dial func(ctx context.Context) (Conn, error)) error {
	attempt, abandoned := s.recovery.NextAttempt()
	if abandoned {
		return errs.ErrReconnectAbandoned
	}

	delay := BackoffDelay(s.cfg.Reconnect, attempt)
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	conn, err := dial(ctx)
	if err != nil {
		return errs.Wrap(err, "reconnect dial")
	}

	s.setConn(conn)
	s.recovery.ResetOnSuccess()
	if err := s.FlushPending(); err != nil {
		return errs.Wrap(err, "flush pending on reconnect")
	}
	s.setState(StateOpenSession)
	s.touch()
	return nil
}

// runReconnectLoop repeatedly calls AttemptReconnect, respecting each
// attempt's own backoff, until it succeeds, ctx is cancelled, or the
// configured max attempts is exceeded — at which point the session is
// closed for good, per §4.5's abandoned-reconnect terminal transition.
func (s *Session) runReconnectLoop(ctx context.Context) {
	for {
		err := s.AttemptReconnect(ctx, s.dialer)
		if err == nil {
			return
		}
		if errors.Is(err, errs.ErrReconnectAbandoned) {
			s.logger.Warnw("reconnect abandoned, closing session", "session_id", s.ID)
			s.Close()
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
