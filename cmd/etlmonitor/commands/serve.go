package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rclabs/etlmonitor/internal/config"
	"github.com/rclabs/etlmonitor/internal/errs"
	"github.com/rclabs/etlmonitor/internal/obslog"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// ServeCmd starts the monitoring backbone and blocks until interrupted.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the connection pool, broadcaster, cache and metrics collector",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mode := obslog.ModeConsole
	if jsonLogs || cfg.Server.JSONLogs {
		mode = obslog.ModeJSON
	}
	logger := obslog.New(mode, zapcore.InfoLevel)
	defer logger.Sync()

	rt, err := NewRuntime(cfg, logger, dbPath)
	if err != nil {
		return errs.Wrap(err, "construct runtime")
	}

	if mode == obslog.ModeConsole {
		printStartupBanner(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx, cfg.Lock)

	if configPath != "" {
		watcher, _, err := config.NewWatcher(configPath, logger.Named("config"))
		if err != nil {
			logger.Warnw("config hot-reload disabled", "error", err)
		} else {
			watcher.OnReload(func(next *config.Config) error {
				logger.Infow("applying live-reloadable config subset", "safe", config.Safe(next))
				return nil
			})
			watcher.Start()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Infow("shutting down")
	rt.Stop()
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, errs.Wrap(err, "load configuration")
	}
	return cfg, nil
}
