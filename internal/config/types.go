// Package config loads and hot-reloads the monitoring backbone's
// configuration via viper + TOML, per §6's external configuration
// contract.
package config

import (
	"time"

	"github.com/rclabs/etlmonitor/internal/broadcaster"
	"github.com/rclabs/etlmonitor/internal/cache"
	"github.com/rclabs/etlmonitor/internal/pool"
	"github.com/rclabs/etlmonitor/internal/session"
)

// LockConfig bounds the Ordered Lock Runtime's acquisition behavior.
type LockConfig struct {
	DefaultTimeout     time.Duration `mapstructure:"default_timeout"`
	CycleCheckInterval time.Duration `mapstructure:"cycle_check_interval"`
	EnableOrderCheck   bool          `mapstructure:"enable_order_check"`
}

func (c LockConfig) withDefaults() LockConfig {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 5 * time.Second
	}
	if c.CycleCheckInterval <= 0 {
		c.CycleCheckInterval = 10 * time.Second
	}
	return c
}

// ServerConfig holds the process-level listen settings, owned by the
// HTTP façade (§6) but parsed here so one config file covers the process.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	JSONLogs   bool   `mapstructure:"json_logs"`
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	return c
}

// Config is the root of the TOML/env configuration tree, unmarshaled by
// viper into the same per-package Config structs the rest of the module
// already uses.
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Pool        pool.Config        `mapstructure:"pool"`
	Broadcaster broadcaster.Config `mapstructure:"broadcaster"`
	Cache       cache.Config       `mapstructure:"cache"`
	Session     session.Config     `mapstructure:"session"`
	Lock        LockConfig         `mapstructure:"lock"`
}

func (c Config) withDefaults() Config {
	c.Server = c.Server.withDefaults()
	c.Lock = c.Lock.withDefaults()
	return c
}
