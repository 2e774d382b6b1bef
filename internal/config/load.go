package config

import (
	"strings"
	"time"

	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/spf13/viper"
)

// SetDefaults populates v with the module's baseline configuration.
// Values here mirror each package's own withDefaults, duplicated so a
// freshly-generated config file documents sane starting points.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.json_logs", false)

	v.SetDefault("pool.max_connections", 1000)
	v.SetDefault("pool.connection_timeout", 30*time.Second)
	v.SetDefault("pool.health_check_interval", 60*time.Second)
	v.SetDefault("pool.cleanup_batch_size", 10)
	v.SetDefault("pool.enable_monitoring", true)
	v.SetDefault("pool.enable_cleanup", true)

	v.SetDefault("broadcaster.max_queue_size", 10000)
	v.SetDefault("broadcaster.batch_size", 50)
	v.SetDefault("broadcaster.processing_interval", 10*time.Millisecond)
	v.SetDefault("broadcaster.max_concurrent_broadcasts", 10)

	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.health_check_ttl", 30*time.Second)
	v.SetDefault("cache.enable_warmup", false)
	v.SetDefault("cache.warmup_max_keys", 100)
	v.SetDefault("cache.warmup_batch_size", 10)
	v.SetDefault("cache.warmup_batch_timeout", 5*time.Second)
	v.SetDefault("cache.warmup_total_timeout", 60*time.Second)

	v.SetDefault("session.send_queue_max", 256)
	v.SetDefault("session.enable_heartbeat", true)
	v.SetDefault("session.heartbeat_interval", 30*time.Second)
	v.SetDefault("session.max_missed_heartbeats", 3)
	v.SetDefault("session.enable_auto_reconnect", true)
	v.SetDefault("session.write_wait", 10*time.Second)
	v.SetDefault("session.pong_wait", 60*time.Second)

	v.SetDefault("lock.default_timeout", 5*time.Second)
	v.SetDefault("lock.cycle_check_interval", 10*time.Second)
	v.SetDefault("lock.enable_order_check", true)
}

// newViper builds a Viper instance bound to ETLMON_-prefixed environment
// variables and seeded with SetDefaults, mirroring the teacher's
// env-prefix-plus-dot-to-underscore convention.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ETLMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads configuration from path (TOML), applying environment
// overrides and package-level defaults. An empty path means defaults and
// environment variables only — no file is required to run.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrapf(err, "read config file %s", path)
		}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrap(err, "unmarshal config")
	}
	cfg = cfg.withDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
