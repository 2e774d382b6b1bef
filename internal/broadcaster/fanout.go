package broadcaster

import (
	"time"

	"github.com/rclabs/etlmonitor/internal/locks"
	"github.com/rclabs/etlmonitor/internal/message"
)

// runIteration executes one fan-out iteration per §4.3's algorithm and
// returns how many entries it processed (0 means the queue was empty).
func (b *Broadcaster) runIteration() int {
	b.activeBroadcasts.Add(1)
	defer b.activeBroadcasts.Add(-1)

	batch := b.popBatch()
	if len(batch) == 0 {
		return 0
	}

	sessions := b.pool.ActiveSessions()

	var delivered int64
	for _, entry := range batch {
		frame, err := message.Encode(entry.Message)
		if err != nil {
			b.logger.Warnw("dropping unencodable message", "kind", entry.Message.Kind, "error", err)
			continue
		}
		for _, s := range sessions {
			if !s.Filters().Accepts(entry.Message) {
				continue
			}
			if dropped := s.Enqueue(frame); !dropped {
				delivered++
			} else {
				b.dropped.Add(1)
			}
		}
	}

	b.sent.Add(delivered)
	if delivered > 0 {
		b.lastSentAt.Store(time.Now().UnixNano())
	}
	b.updateRate(delivered)
	return len(batch)
}

// popBatch pops up to cfg.BatchSize entries under the queue mutex, then
// releases it before any session work — §4.3 steps 1-2.
func (b *Broadcaster) popBatch() []*message.QueueEntry {
	g, err := locks.Acquire(b.queueMu, locks.Options{Name: "broadcaster-queue"}, b.lockReg)
	if err != nil {
		return nil
	}
	defer g.Release()
	return b.queue.PopBatch(b.cfg.BatchSize)
}

// updateRate folds delivered into an exponential moving average of
// messages-per-second, sampled once per processingInterval.
func (b *Broadcaster) updateRate(delivered int64) {
	instant := float64(delivered) / b.cfg.ProcessingInterval.Seconds()
	const alpha = 0.2

	b.emaMu.Lock()
	defer b.emaMu.Unlock()
	if b.emaRate == 0 {
		b.emaRate = instant
		return
	}
	b.emaRate = alpha*instant + (1-alpha)*b.emaRate
}
