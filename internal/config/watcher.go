package config

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReloadCallback receives the newly loaded configuration. Returning an
// error only logs; it never aborts the watch loop.
type ReloadCallback func(*Config) error

// Watcher watches a TOML config file for changes and hands each re-read
// Config to the registered callbacks; it applies nothing itself. The
// fields safe to change live are TTLs and intervals (see SafeFields).
// Lock levels and hard capacity ceilings that already back fixed-size
// structures (the LRU's MaxEntries, a channel's buffer capacity) require
// a process restart.
type Watcher struct {
	v      *viper.Viper
	path   string
	logger *zap.SugaredLogger

	callbacks []ReloadCallback
}

// NewWatcher loads path once and returns a Watcher primed to re-read it
// on every subsequent write.
func NewWatcher(path string, logger *zap.SugaredLogger) (*Watcher, *Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, errs.Wrapf(err, "read config file %s", path)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &Watcher{v: v, path: path, logger: logger}, cfg, nil
}

// OnReload registers a callback invoked with the full re-read, validated
// configuration every time the watched file changes. Callbacks pick out
// the live-reloadable subset themselves, via Safe.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the config file in the background. It returns
// immediately. Watcher has no Stop method; the watch lasts for the life
// of the process.
func (w *Watcher) Start() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		w.logger.Infow("config file changed, reloading safe subset", "file", e.Name, "op", e.Op.String())
		next, err := unmarshal(w.v)
		if err != nil {
			w.logger.Warnw("config reload rejected", "error", err)
			return
		}
		for _, cb := range w.callbacks {
			if err := cb(next); err != nil {
				w.logger.Warnw("config reload callback failed", "error", err)
			}
		}
	})
	w.v.WatchConfig()
}

// SafeFields is the subset of a reloaded Config that callbacks are
// expected to apply live. Capacity ceilings backing fixed-size
// structures (MaxConnections, MaxQueueSize, MaxEntries, SendQueueMax) and
// the lock order-check toggle are deliberately excluded: changing them
// without restarting the owning component risks a size mismatch against
// already-allocated buffers, so callbacks should read those fields from
// the original startup Config instead of a reloaded one.
type SafeFields struct {
	ConnectionTimeout   time.Duration
	HealthCheckInterval time.Duration
	ProcessingInterval  time.Duration
	DefaultTTL          time.Duration
	HealthCheckTTL      time.Duration
	HeartbeatInterval   time.Duration
	LockDefaultTimeout  time.Duration
	CycleCheckInterval  time.Duration
}

// Safe extracts the live-reloadable fields from cfg.
func Safe(cfg *Config) SafeFields {
	return SafeFields{
		ConnectionTimeout:   cfg.Pool.ConnectionTimeout,
		HealthCheckInterval: cfg.Pool.HealthCheckInterval,
		ProcessingInterval:  cfg.Broadcaster.ProcessingInterval,
		DefaultTTL:          cfg.Cache.DefaultTTL,
		HealthCheckTTL:      cfg.Cache.HealthCheckTTL,
		HeartbeatInterval:   cfg.Session.HeartbeatInterval,
		LockDefaultTimeout:  cfg.Lock.DefaultTimeout,
		CycleCheckInterval:  cfg.Lock.CycleCheckInterval,
	}
}
