// Package commands implements the etlmonitor CLI's subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	jsonLogs   bool
)

// Root is the etlmonitor binary's entrypoint command.
var Root = &cobra.Command{
	Use:   "etlmonitor",
	Short: "Real-time monitoring backbone for the ETL platform",
	Long: `etlmonitor runs the connection pool, message broadcaster, cache
manager and job metrics collector that back an ETL platform's real-time
WebSocket monitoring surface.`,
}

func init() {
	Root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML configuration file (defaults and env vars apply if empty)")
	Root.PersistentFlags().StringVar(&dbPath, "db-path", "", "path to the sqlite cache_access_log store (warmup is skipped if empty)")
	Root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of the console encoder")

	Root.AddCommand(ServeCmd)
	Root.AddCommand(ConfigCmd)
}
