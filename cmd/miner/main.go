// Package main provides the twin miner entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/twin-miner/internal/api"
	"github.com/twin-miner/internal/circuitbreaker"
	"github.com/twin-miner/internal/config"
	"github.com/twin-miner/internal/logging"
	"github.com/twin-miner/internal/miner"
	"github.com/twin-miner/internal/notify"
	"github.com/twin-miner/internal/retry"
	"github.com/twin-miner/internal/storage"
	"github.com/twin-miner/internal/worker"
)

func main() {
	fmt.Println("Twin Miner")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Miner stopped with error")
	}
	logger.Info("Miner stopped. Goodbye!")
}

func run(cfg *config.Config, logger *logging.Logger) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ceiling := uint8(cfg.Mining.ActiveCeiling) // #nosec G115 - validated to 1..255

	// Target store
	var store worker.TargetStore
	switch cfg.Mining.Store {
	case config.StoreMemory:
		targets, err := storage.ParseMemoryTargets(cfg.Mining.MemoryTargets)
		if err != nil {
			return fmt.Errorf("MINER_MEMORY_TARGETS: %w", err)
		}
		mem := storage.NewMemoryTargetStore(ceiling)
		for _, t := range targets {
			mem.Put(t)
		}
		logger.Warnf("Using in-memory target store with %d targets; results are not persisted", len(targets))
		store = mem
	default:
		logger.Info("Connecting to Postgres...")
		var postgres *storage.PostgresDB
		connect := func(ctx context.Context, attempt int) error {
			db, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
			if err != nil {
				return err
			}
			postgres = db
			return nil
		}
		retryCfg := retry.DefaultRetryConfig()
		retryCfg.ShouldRetry = func(error) bool { return true }
		if err := retry.WithRetry(logging.WithLogger(sigCtx, logger), retryCfg, connect); err != nil {
			return fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		defer postgres.Close()
		store = storage.NewTargetRepository(postgres, ceiling)
	}

	// Sequence cursor
	var cursor worker.CursorStore
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(sigCtx, &cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, workers start from sequence 0")
		} else {
			defer redis.Close()
			cursor = storage.NewSequenceCursor(redis, miner.NewVersionHash(cfg.Mining.VersionTag).String())
			logger.Info("Sequence cursor enabled")
		}
	}

	// Background pipelines outlive the workers so the last improvements and
	// discoveries are flushed after the pool stops.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Improvement history
	var recorder *worker.ImprovementRecorder
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(sigCtx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, improvement history disabled")
		} else {
			defer clickhouse.Close()
			recorder = worker.NewImprovementRecorder(
				storage.NewImprovementRepository(clickhouse),
				cfg.Database.ClickHouse.BatchSize,
				cfg.Database.ClickHouse.FlushInterval,
				logger,
			)
			go recorder.Run(bgCtx)
		}
	}

	// Discovery notifications
	var dispatcher *notify.Dispatcher
	if cfg.Notify.Enabled {
		client := notify.NewClient(cfg.Notify.BaseURL, cfg.Notify.Timeout)
		breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("notify"), logger)
		dispatcher = notify.NewDispatcher(client, notify.DispatcherConfig{
			QueueSize:     cfg.Notify.QueueSize,
			RatePerSecond: cfg.Notify.RatePerSecond,
			Burst:         cfg.Notify.Burst,
			SendTimeout:   cfg.Notify.Timeout,
		}, breaker, notify.NewMetrics(registry), logger)
		go dispatcher.Run(bgCtx)
		logger.WithField("endpoint", client.Endpoint()).Info("Discovery notifications enabled")
	}

	version := miner.NewVersionHash(cfg.Mining.VersionTag)
	template := worker.SearchWorkerConfig{
		Generator:          miner.NewGenerator(version),
		Scorer:             miner.NewScorer(cfg.Mining.Weights),
		Store:              store,
		Cursor:             cursor,
		BatchSize:          cfg.Mining.BatchSize,
		IdleInterval:       cfg.Mining.IdleInterval,
		DiscoveryThreshold: uint8(cfg.Mining.DiscoveryThreshold), // #nosec G115 - validated to 0..255
		StoreTimeout:       cfg.Mining.StoreTimeout,
		Metrics:            worker.NewMetrics(registry),
		Logger:             logger,
	}
	// Typed nils must not reach the worker's optional interfaces.
	if dispatcher != nil {
		template.Notifier = dispatcher
	}
	if recorder != nil {
		template.Improvements = recorder
	}

	pool, err := worker.NewPool(&worker.PoolConfig{
		Workers:        cfg.Mining.Workers,
		WorkerIDOffset: cfg.Mining.WorkerIDOffset,
		Template:       template,
	})
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"workers":   cfg.Mining.Workers,
		"idOffset":  cfg.Mining.WorkerIDOffset,
		"version":   cfg.Mining.VersionTag,
		"hash":      version.String(),
		"weights":   cfg.Mining.Weights.String(),
		"batchSize": cfg.Mining.BatchSize,
		"threshold": cfg.Mining.DiscoveryThreshold,
	}).Info("Search pool configured")

	// Status server
	var server *api.StatusServer
	if cfg.Status.Enabled {
		serverCfg := &api.ServerConfig{
			Addr:         cfg.Status.Addr(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			StoreTimeout: cfg.Mining.StoreTimeout,
			Info: api.MinerInfo{
				Version:            cfg.Mining.VersionTag,
				VersionHash:        version.String(),
				Weights:            cfg.Mining.Weights.String(),
				DiscoveryThreshold: cfg.Mining.DiscoveryThreshold,
				ActiveCeiling:      cfg.Mining.ActiveCeiling,
				BatchSize:          cfg.Mining.BatchSize,
			},
		}
		deps := api.StatusServerDeps{
			Pool:     pool,
			Scores:   store,
			Gatherer: registry,
			Logger:   logger,
		}
		if dispatcher != nil {
			deps.Notifications = dispatcher
		}
		server = api.NewStatusServer(serverCfg, deps)
		go func() {
			if err := server.Start(); err != nil {
				logger.WithError(err).Error("Status server failed")
			}
		}()
	}

	logger.Info("Miner started, press Ctrl+C to stop")
	runErr := pool.Run(sigCtx)
	logger.Info("Search pool stopped")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Status server shutdown failed")
		}
		cancel()
	}

	bgCancel()
	if dispatcher != nil {
		<-dispatcher.Done()
		stats := dispatcher.Stats()
		logger.WithFields(map[string]interface{}{
			"sent":    stats.Sent,
			"dropped": stats.Dropped,
			"failed":  stats.Failed,
		}).Info("Notification dispatcher stopped")
	}
	if recorder != nil {
		<-recorder.Done()
		logger.WithFields(map[string]interface{}{
			"written": recorder.Written(),
			"dropped": recorder.Dropped(),
		}).Info("Improvement recorder stopped")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
