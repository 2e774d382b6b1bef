package commands

import (
	"context"

	"github.com/rclabs/etlmonitor/internal/broadcaster"
	"github.com/rclabs/etlmonitor/internal/cache"
	"github.com/rclabs/etlmonitor/internal/config"
	"github.com/rclabs/etlmonitor/internal/locks"
	"github.com/rclabs/etlmonitor/internal/metrics"
	"github.com/rclabs/etlmonitor/internal/pool"
	"github.com/rclabs/etlmonitor/internal/store"
	"go.uber.org/zap"
)

// Runtime wires the five core subsystems together the way an owning
// process (behind an out-of-scope HTTP façade) would: one lock registry,
// one pool, one broadcaster fanning out over it, one cache, and one
// metrics collector publishing through the broadcaster.
type Runtime struct {
	Logger      *zap.SugaredLogger
	LockReg     *locks.Registry
	Pool        *pool.Pool
	Broadcaster *broadcaster.Broadcaster
	Cache       *cache.Manager
	Metrics     *metrics.Collector
	Store       *store.SQLiteStore

	cacheCfg cache.Config
	cancel   context.CancelFunc
}

// NewRuntime constructs every subsystem from cfg but does not start any
// background loop yet.
func NewRuntime(cfg *config.Config, logger *zap.SugaredLogger, dbPath string) (*Runtime, error) {
	lockReg := locks.NewRegistry()

	p := pool.New(cfg.Pool, logger.Named("pool"), lockReg)
	bc := broadcaster.New(cfg.Broadcaster, p, logger.Named("broadcaster"), lockReg)

	var backend cache.Backend
	var st *store.SQLiteStore
	if dbPath != "" {
		opened, err := store.Open(dbPath)
		if err != nil {
			return nil, err
		}
		if err := opened.Migrate(context.Background()); err != nil {
			return nil, err
		}
		st = opened
		backend = opened
	}

	cacheMgr, err := cache.New(cfg.Cache, backend, lockReg)
	if err != nil {
		return nil, err
	}

	gauges, err := metrics.NewGaugeReader()
	if err != nil {
		logger.Warnw("metrics gauges unavailable, efficiency scores will read zero", "error", err)
		gauges = nil
	}
	collector := metrics.New(logger.Named("metrics"), bc, gauges, cfg.Broadcaster.ProcessingInterval*10)

	return &Runtime{
		Logger:      logger,
		LockReg:     lockReg,
		Pool:        p,
		Broadcaster: bc,
		Cache:       cacheMgr,
		Metrics:     collector,
		Store:       st,
		cacheCfg:    cfg.Cache,
	}, nil
}

// Start launches every subsystem's background loop. If a persistent store
// is configured and warmup is enabled, it also runs one warmup pass before
// traffic starts flowing.
func (r *Runtime) Start(ctx context.Context, lockCfg config.LockConfig) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if r.Store != nil {
		result := r.Cache.Warmup(ctx, r.Store, r.cacheCfg.WarmupConfig(), r.Logger.Named("cache"))
		r.Logger.Infow("cache warmup complete", "loaded", result.Loaded, "errors", result.Errors, "duration_ms", result.DurationMs)
	}

	r.Pool.Start()
	r.Pool.StartMonitoring(ctx)
	r.Broadcaster.Start(ctx)
	go r.Metrics.Run(ctx)
	locks.SetDetectorEnabled(lockCfg.EnableOrderCheck)
	if lockCfg.EnableOrderCheck {
		go locks.RunCycleCheck(ctx, r.Logger.Named("locks"), lockCfg.CycleCheckInterval)
	}
}

// Stop cooperatively stops every subsystem in dependency order: metrics
// and the broadcaster (producers of traffic) before the pool they read
// from, then releases the store.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.Metrics.Stop()
	r.Broadcaster.Stop()
	r.Pool.Stop()
	if r.Store != nil {
		_ = r.Store.Close()
	}
}
