package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"github.com/rclabs/etlmonitor/internal/errs"
)

// Dump renders the resolved configuration (defaults + file + environment,
// already merged into cfg) back out as TOML, for operators who want to see
// what a bare `etlmonitor serve` would actually run with.
func Dump(cfg *Config) (string, error) {
	flat := map[string]interface{}{
		"server": map[string]interface{}{
			"listen_addr": cfg.Server.ListenAddr,
			"json_logs":   cfg.Server.JSONLogs,
		},
		"pool": map[string]interface{}{
			"max_connections":       cfg.Pool.MaxConnections,
			"connection_timeout":    cfg.Pool.ConnectionTimeout.String(),
			"health_check_interval": cfg.Pool.HealthCheckInterval.String(),
			"cleanup_batch_size":    cfg.Pool.CleanupBatchSize,
			"enable_monitoring":     cfg.Pool.EnableMonitoring,
			"enable_cleanup":        cfg.Pool.EnableCleanup,
		},
		"broadcaster": map[string]interface{}{
			"max_queue_size":            cfg.Broadcaster.MaxQueueSize,
			"batch_size":                cfg.Broadcaster.BatchSize,
			"processing_interval":       cfg.Broadcaster.ProcessingInterval.String(),
			"max_concurrent_broadcasts": cfg.Broadcaster.MaxConcurrentBroadcasts,
		},
		"cache": map[string]interface{}{
			"max_entries":          cfg.Cache.MaxEntries,
			"default_ttl":          cfg.Cache.DefaultTTL.String(),
			"user_ttl":             cfg.Cache.UserTTL.String(),
			"job_ttl":              cfg.Cache.JobTTL.String(),
			"session_ttl":          cfg.Cache.SessionTTL.String(),
			"health_check_ttl":     cfg.Cache.HealthCheckTTL.String(),
			"enable_warmup":        cfg.Cache.EnableWarmup,
			"warmup_max_keys":      cfg.Cache.WarmupMaxKeys,
			"warmup_batch_size":    cfg.Cache.WarmupBatchSize,
			"warmup_batch_timeout": cfg.Cache.WarmupBatchTimeout.String(),
			"warmup_total_timeout": cfg.Cache.WarmupTotalTimeout.String(),
		},
		"session": map[string]interface{}{
			"send_queue_max":        cfg.Session.SendQueueMax,
			"enable_heartbeat":      cfg.Session.EnableHeartbeat,
			"heartbeat_interval":    cfg.Session.HeartbeatInterval.String(),
			"max_missed_heartbeats": cfg.Session.MaxMissedHeartbeats,
			"enable_auto_reconnect": cfg.Session.EnableAutoReconnect,
			"write_wait":            cfg.Session.WriteWait.String(),
			"pong_wait":             cfg.Session.PongWait.String(),
		},
		"lock": map[string]interface{}{
			"default_timeout":      cfg.Lock.DefaultTimeout.String(),
			"cycle_check_interval": cfg.Lock.CycleCheckInterval.String(),
			"enable_order_check":   cfg.Lock.EnableOrderCheck,
		},
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(flat); err != nil {
		return "", errs.Wrap(err, "encode config as toml")
	}
	return buf.String(), nil
}
