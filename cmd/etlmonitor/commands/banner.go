package commands

import (
	"github.com/pterm/pterm"
	"github.com/rclabs/etlmonitor/internal/config"
)

// printStartupBanner prints a short pool/broadcaster/cache summary.
// Suppressed entirely when JSON logging is active, so shipped logs stay
// single-format.
func printStartupBanner(cfg *config.Config) {
	pterm.DefaultHeader.WithFullWidth().Printf("ETL Monitor")
	pterm.Println()

	pterm.Info.Printf("listen addr:       %s\n", cfg.Server.ListenAddr)
	pterm.Info.Printf("pool capacity:     %d\n", cfg.Pool.MaxConnections)
	pterm.Info.Printf("broadcaster queue: %d (batch %d)\n", cfg.Broadcaster.MaxQueueSize, cfg.Broadcaster.BatchSize)
	pterm.Info.Printf("cache entries:     %d (warmup %t)\n", cfg.Cache.MaxEntries, cfg.Cache.EnableWarmup)
	pterm.Info.Printf("lock order check:  %t\n", cfg.Lock.EnableOrderCheck)
	pterm.Println()
}
