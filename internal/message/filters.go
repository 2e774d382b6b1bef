package message

import (
	"encoding/json"

	"github.com/rclabs/etlmonitor/internal/errs"
)

// Filters describes which messages a session wants delivered. An empty
// set at any dimension means "match all" in that dimension, per §3.1 and
// the filter-update protocol in §6.
type Filters struct {
	JobIDs                     map[string]struct{}
	MessageTypes               map[Kind]struct{}
	LogLevels                  map[LogLevel]struct{}
	IncludeSystemNotifications bool
}

// NewFilters returns a Filters value with a usable, non-nil empty set in
// every dimension. It matches every message except SystemNotification,
// which also needs IncludeSystemNotifications set.
func NewFilters() Filters {
	return Filters{
		JobIDs:       map[string]struct{}{},
		MessageTypes: map[Kind]struct{}{},
		LogLevels:    map[LogLevel]struct{}{},
	}
}

// Accepts reports whether m matches f, per §4.3's filter-matching rules.
// Every check is an O(1) hashed lookup.
func (f Filters) Accepts(m Message) bool {
	if len(f.MessageTypes) > 0 {
		if _, ok := f.MessageTypes[m.Kind]; !ok {
			return false
		}
	}
	if m.TargetJobID != "" && len(f.JobIDs) > 0 {
		if _, ok := f.JobIDs[m.TargetJobID]; !ok {
			return false
		}
	}
	if m.TargetLevel != "" && len(f.LogLevels) > 0 {
		if _, ok := f.LogLevels[m.TargetLevel]; !ok {
			return false
		}
	}
	if m.Kind == KindSystemNotification && !f.IncludeSystemNotifications {
		return false
	}
	return true
}

// wireFilters is the client -> server JSON shape described in §6.
type wireFilters struct {
	JobIDs                     []string   `json:"jobIds"`
	LogLevels                  []LogLevel `json:"logLevels"`
	MessageTypes               []Kind     `json:"messageTypes"`
	IncludeSystemNotifications bool       `json:"includeSystemNotifications"`
}

func toSet[T comparable](items []T) map[T]struct{} {
	if len(items) == 0 {
		return map[T]struct{}{}
	}
	out := make(map[T]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

func fromSet[T comparable](set map[T]struct{}) []T {
	if len(set) == 0 {
		return nil
	}
	out := make([]T, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// DecodeFilters parses the client -> server filter-update payload,
// validating every jobId, logLevel and messageType per §6's rules.
func DecodeFilters(data []byte) (Filters, error) {
	var w wireFilters
	if err := json.Unmarshal(data, &w); err != nil {
		return Filters{}, errs.Wrapf(err, "decode filter update")
	}
	return filtersFromWire(w)
}

func filtersFromWire(w wireFilters) (Filters, error) {
	for _, id := range w.JobIDs {
		if err := ValidateJobID(id); err != nil {
			return Filters{}, err
		}
	}
	for _, lvl := range w.LogLevels {
		if !lvl.valid() {
			return Filters{}, errs.Wrapf(errs.ErrInvalidConfig, "unknown log level %q", lvl)
		}
	}
	for _, k := range w.MessageTypes {
		if !k.valid() {
			return Filters{}, errs.Wrapf(errs.ErrInvalidConfig, "unknown message type %q", k)
		}
	}
	return Filters{
		JobIDs:                     toSet(w.JobIDs),
		LogLevels:                  toSet(w.LogLevels),
		MessageTypes:               toSet(w.MessageTypes),
		IncludeSystemNotifications: w.IncludeSystemNotifications,
	}, nil
}

// Encode renders f back into the client <-> server filter shape, so that
// parse(serialize(F)) round-trips as sets.
func (f Filters) Encode() ([]byte, error) {
	return json.Marshal(wireFilters{
		JobIDs:                     fromSet(f.JobIDs),
		LogLevels:                  fromSet(f.LogLevels),
		MessageTypes:               fromSet(f.MessageTypes),
		IncludeSystemNotifications: f.IncludeSystemNotifications,
	})
}
