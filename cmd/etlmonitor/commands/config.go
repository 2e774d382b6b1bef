package commands

import (
	"github.com/pterm/pterm"
	"github.com/rclabs/etlmonitor/internal/config"
	"github.com/spf13/cobra"
)

// ConfigCmd groups configuration-related subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate etlmonitor configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration file without starting anything",
	RunE:  runConfigValidate,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the fully-resolved configuration (defaults + file + env) as TOML",
	RunE:  runConfigDump,
}

func init() {
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configDumpCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		pterm.Error.Println(err.Error())
		return err
	}
	pterm.Success.Printf("configuration valid (%s)\n", describeSource())
	pterm.Printf("  pool.max_connections = %d\n", cfg.Pool.MaxConnections)
	pterm.Printf("  broadcaster.max_queue_size = %d\n", cfg.Broadcaster.MaxQueueSize)
	pterm.Printf("  cache.max_entries = %d\n", cfg.Cache.MaxEntries)
	pterm.Printf("  cache.enable_warmup = %t\n", cfg.Cache.EnableWarmup)
	pterm.Printf("  lock.enable_order_check = %t\n", cfg.Lock.EnableOrderCheck)
	return nil
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		pterm.Error.Println(err.Error())
		return err
	}
	out, err := config.Dump(cfg)
	if err != nil {
		pterm.Error.Println(err.Error())
		return err
	}
	pterm.Printf("%s", out)
	return nil
}

func describeSource() string {
	if configPath == "" {
		return "defaults + environment"
	}
	return configPath
}
