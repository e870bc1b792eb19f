package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/forkline/forkline/internal/app"
	"github.com/forkline/forkline/internal/catalog"
	"github.com/forkline/forkline/internal/locations"
	"github.com/forkline/forkline/internal/observability"
	"github.com/forkline/forkline/internal/platform/cache"
	"github.com/forkline/forkline/internal/platform/db"
	"github.com/forkline/forkline/internal/shared"
	"github.com/forkline/forkline/internal/transfer"
	"github.com/forkline/forkline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, cache and notifications disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	var pool *pgxpool.Pool
	if cfg.StoreDriver == app.DriverPostgres {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	}

	sequencer, err := newSequencer(cfg, pool, redisClient)
	if err != nil {
		logger.Error("init sequencer", slog.Any("error", err))
		os.Exit(1)
	}

	var (
		locationRepo locations.Repository
		catalogRepo  catalog.Repository
		transferRepo transfer.Repository
		idempotency  shared.Idempotency
		opts         = transfer.Options{
			Locks:   shared.NewKeyedLocker(),
			Metrics: metrics,
			Logger:  logger,
		}
	)
	if pool != nil {
		locationRepo = locations.NewRepository(pool)
		catalogRepo = catalog.NewPGRepository(pool)
		transferRepo = transfer.NewPGRepository(pool, sequencer)
		idempotency = shared.NewIdempotencyStore(pool)
		opts.Audit = shared.NewAuditLogger(pool)
		opts.Approvals = shared.NewApprovalRecorder(pool, logger)
	} else {
		locationRepo = locations.NewMemoryRepository()
		catalogRepo = catalog.NewMemoryRepository()
		transferRepo = transfer.NewMemoryRepository(sequencer)
		idempotency = shared.NewMemoryIdempotency()
	}
	opts.Idempotency = idempotency

	var inspector jobs.QueueInspector
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		opts.Notifier = jobClient

		asynqInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := asynqInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		inspector = asynqInspector
	}

	locationService := locations.NewService(locationRepo)
	catalogService := catalog.NewService(catalogRepo, catalog.NewOverviewCache(redisClient, cfg.CatalogCacheTTL), locationService, logger)
	transferService := transfer.NewService(transferRepo, locationService, opts)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LocationsHandler: locations.NewHandler(logger, locationService),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		TransferHandler:  transfer.NewHandler(logger, transferService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("store", cfg.StoreDriver),
			slog.String("sequence", cfg.SequenceDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func newSequencer(cfg *app.Config, pool *pgxpool.Pool, client *redis.Client) (transfer.Sequencer, error) {
	switch cfg.SequenceDriver {
	case app.DriverPostgres:
		if pool == nil {
			return nil, errors.New("SEQUENCE_DRIVER=postgres requires the postgres store")
		}
		return transfer.NewPGSequencer(pool), nil
	case app.DriverRedis:
		if client == nil {
			return nil, errors.New("SEQUENCE_DRIVER=redis requires a reachable REDIS_ADDR")
		}
		return transfer.NewRedisSequencer(client), nil
	default:
		return transfer.NewCounterSequencer(0), nil
	}
}
