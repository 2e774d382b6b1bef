package config

import "github.com/rclabs/etlmonitor/internal/errs"

// Validate rejects configurations that would leave a subsystem unable to
// start, returning errs.ErrInvalidConfig wrapped with the offending field.
func Validate(cfg *Config) error {
	if cfg.Pool.MaxConnections < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "pool.max_connections must be >= 0, got %d", cfg.Pool.MaxConnections)
	}
	if cfg.Broadcaster.MaxQueueSize < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "broadcaster.max_queue_size must be >= 0, got %d", cfg.Broadcaster.MaxQueueSize)
	}
	if cfg.Broadcaster.BatchSize < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "broadcaster.batch_size must be >= 0, got %d", cfg.Broadcaster.BatchSize)
	}
	if cfg.Cache.MaxEntries < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "cache.max_entries must be >= 0, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Session.SendQueueMax < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "session.send_queue_max must be >= 0, got %d", cfg.Session.SendQueueMax)
	}
	if cfg.Session.MaxMissedHeartbeats < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "session.max_missed_heartbeats must be >= 0, got %d", cfg.Session.MaxMissedHeartbeats)
	}
	if cfg.Lock.DefaultTimeout < 0 {
		return errs.Wrapf(errs.ErrInvalidConfig, "lock.default_timeout must be >= 0, got %s", cfg.Lock.DefaultTimeout)
	}
	return nil
}
