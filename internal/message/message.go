package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rclabs/etlmonitor/internal/errs"
)

// wireTimeLayout is §6's wire format: millisecond precision, Z suffix, UTC.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// WireTime marshals/unmarshals as the millisecond-precision UTC timestamp
// described in §6, while staying a plain time.Time for everything else.
type WireTime struct {
	time.Time
}

func Now() WireTime {
	return WireTime{time.Now().UTC()}
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(wireTimeLayout))
}

func (t *WireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		parsed, err = time.Parse(wireTimeLayout, s)
		if err != nil {
			return errs.Wrapf(err, "parse wire timestamp %q", s)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

// Message is the in-process representation of one frame a producer hands
// to the broadcaster. Priority is higher-first; TargetJobID and
// TargetLevel are meaningful only for the kinds that carry them.
type Message struct {
	ID          string
	Kind        Kind
	Timestamp   WireTime
	Payload     json.RawMessage
	TargetJobID string
	TargetLevel LogLevel
	Priority    int
}

// New builds a Message with a fresh id and the current timestamp. payload
// is marshaled immediately so later mutation of the caller's value can't
// change an already-enqueued message.
func New(kind Kind, payload any, priority int) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, errs.Wrapf(err, "marshal payload for %s", kind)
	}
	return Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: Now(),
		Payload:   raw,
		Priority:  priority,
	}, nil
}

// frame is the wire-format shape described in §6.
type frame struct {
	Type        Kind            `json:"type"`
	Timestamp   WireTime        `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
	TargetJobID string          `json:"targetJobId,omitempty"`
	TargetLevel LogLevel        `json:"targetLevel,omitempty"`
}

// Encode renders M as the wire-format JSON frame in §6.
func Encode(m Message) ([]byte, error) {
	if !m.Kind.valid() {
		return nil, errs.Wrapf(errs.ErrInvalidConfig, "unknown message kind %q", m.Kind)
	}
	f := frame{
		Type:        m.Kind,
		Timestamp:   m.Timestamp,
		Data:        m.Payload,
		TargetJobID: m.TargetJobID,
		TargetLevel: m.TargetLevel,
	}
	return json.Marshal(f)
}

// Decode parses a wire-format frame back into a Message. It does not
// assign an ID; callers that need decode(encode(M)) == M must compare
// everything but ID, or preserve ID out of band.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Message{}, errs.Wrapf(err, "decode message frame")
	}
	if !f.Type.valid() {
		return Message{}, errs.Wrapf(errs.ErrInvalidConfig, "unknown message kind %q", f.Type)
	}
	return Message{
		Kind:        f.Type,
		Timestamp:   f.Timestamp,
		Payload:     f.Data,
		TargetJobID: f.TargetJobID,
		TargetLevel: f.TargetLevel,
	}, nil
}

// QueueEntry is a Message plus the time it was enqueued in the
// broadcaster, the ordering key for the priority queue.
type QueueEntry struct {
	Message    Message
	EnqueuedAt time.Time
	seq        uint64 // tiebreaks EnqueuedAt ties with FIFO order
}
