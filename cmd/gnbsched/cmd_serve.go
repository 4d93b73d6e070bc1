package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/gnb_scheduler/internal/api"
	"github.com/friendsincode/gnb_scheduler/internal/cache"
	"github.com/friendsincode/gnb_scheduler/internal/config"
	"github.com/friendsincode/gnb_scheduler/internal/diag"
	"github.com/friendsincode/gnb_scheduler/internal/driver"
	"github.com/friendsincode/gnb_scheduler/internal/eventbus"
	"github.com/friendsincode/gnb_scheduler/internal/leadership"
	"github.com/friendsincode/gnb_scheduler/internal/scheduler"
	"github.com/friendsincode/gnb_scheduler/internal/server"
	"github.com/friendsincode/gnb_scheduler/internal/telemetry"
	"github.com/friendsincode/gnb_scheduler/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the slot driver and control-plane API",
	Long:  "Start the slot clock for every configured cell and the HTTP control-plane API.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("gnbsched starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "gnbsched",
		ServiceVersion: version.Version,
		InstanceID:     cfg.InstanceID,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	bus, err := eventbus.Open(busConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}

	diagBuf := diag.New(cfg.DiagCapacity)
	sched := scheduler.New(scheduler.Config{
		MaxCells:           cfg.MaxCells,
		RingDepth:          cfg.RingDepth,
		ResultHistory:      cfg.ResultHistory,
		MaxPendingEvents:   cfg.MaxPending,
		PublishSlotResults: cfg.PublishSlotResults,
	}, diag.Multi{diagBuf, diag.NewLogger(logger)}, bus, logger)

	if cfg.CellsFile != "" {
		cells, err := config.LoadCells(cfg.CellsFile, cfg.Numerology)
		if err != nil {
			_ = bus.Close()
			return err
		}
		for _, c := range cells {
			if err := sched.Configure(c); err != nil {
				_ = bus.Close()
				return fmt.Errorf("configure cell %d: %w", c.Index, err)
			}
		}
	}

	var sink driver.ResultSink = driver.NewLogSink(logger)
	var resultCache *cache.Cache
	if cfg.ResultCacheEnabled {
		resultCache = cache.New(cache.Config{
			RedisAddr:      cfg.RedisAddr,
			RedisPassword:  cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			ResultTTL:      cfg.ResultCacheTTL,
			DisableOnError: true,
		}, logger)
		sink = driver.Multi{sink, cache.NewResultSink(resultCache, cfg.ResultCacheInterval)}
		if !cfg.LeaderElectionEnabled {
			// Sole clock owner: nothing mirrored by an earlier run is current.
			if err := resultCache.InvalidateAll(ctx); err != nil {
				logger.Warn().Err(err).Msg("clear result mirror")
			}
		}
	}

	drv := driver.New(driver.Config{
		Numerology:   cfg.Numerology,
		SlotDuration: cfg.EffectiveSlotDuration(),
		Workers:      cfg.Workers,
	}, sched, sink, logger)

	apiHandler := api.New(sched, bus, diagBuf, []byte(cfg.JWTSigningKey), logger)
	srv := server.New(cfg, apiHandler, logger)
	srv.DeferClose(bus.Close)
	if resultCache != nil {
		apiHandler.SetResultMirror(resultCache)
		srv.DeferClose(resultCache.Close)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	var leaderAware *driver.LeaderAware
	if cfg.LeaderElectionEnabled {
		electionCfg := leadership.DefaultConfig()
		electionCfg.RedisAddr = cfg.RedisAddr
		electionCfg.RedisPassword = cfg.RedisPassword
		electionCfg.RedisDB = cfg.RedisDB
		if cfg.InstanceID != "" {
			electionCfg.InstanceID = cfg.InstanceID
		}
		election, err := leadership.NewElection(electionCfg, logger)
		if err != nil {
			return fmt.Errorf("leader election: %w", err)
		}
		leaderAware = driver.NewLeaderAware(drv, election, bus, logger)
		if err := leaderAware.Start(ctx); err != nil {
			return fmt.Errorf("start leader-aware driver: %w", err)
		}
		apiHandler.SetLeaderCheck(leaderAware.IsLeader)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		if leaderAware == nil {
			err := drv.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case <-gctx.Done():
			return leaderAware.Stop()
		case err := <-leaderAware.Fatal():
			_ = leaderAware.Stop()
			return fmt.Errorf("slot driver: %w", err)
		}
	})

	err = g.Wait()
	logger.Info().
		Uint64("ticks", drv.Ticks()).
		Uint64("overruns", drv.Overruns()).
		Msg("gnbsched stopped")
	return err
}

func busConfig(cfg *config.Config) eventbus.Config {
	redisCfg := eventbus.DefaultRedisConfig()
	redisCfg.Addr = cfg.RedisAddr
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB

	natsCfg := eventbus.DefaultNATSConfig()
	if cfg.NATSURL != "" {
		natsCfg.URL = cfg.NATSURL
	}

	return eventbus.Config{
		Backend: string(cfg.NotifyBackend),
		NodeID:  cfg.InstanceID,
		Redis:   redisCfg,
		NATS:    natsCfg,
	}
}
