package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outbound-shipments/internal/airtable"
	"github.com/kursadbilgin/outbound-shipments/internal/config"
	"github.com/kursadbilgin/outbound-shipments/internal/handler"
	"github.com/kursadbilgin/outbound-shipments/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/outbound-shipments/internal/infra/redis"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/queue"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"github.com/kursadbilgin/outbound-shipments/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN, postgresql.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime(),
	}, logger)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	cache, err := infraredis.NewShipmentCache(rdb, cfg.CacheTTL())
	if err != nil {
		logger.Fatal("shipment cache initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	repo := repository.NewGormShipmentRepo(db)

	shipments, err := service.NewShipmentService(repo, cache, queue.NewRabbitMQPublisher(rabbit), logger)
	if err != nil {
		logger.Fatal("shipment service initialization failed", zap.Error(err))
	}
	shipments.SetMetrics(metrics)

	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)
	consumer.SetMetrics(metrics)
	defer consumer.Close()

	tracking, err := service.NewTrackingWorker(shipments, consumer, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("tracking worker initialization failed", zap.Error(err))
	}
	tracking.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracking.Start(gctx)
	})

	admin := newAdminApp(metrics, sqlDB, rdb, rabbit)
	g.Go(func() error {
		logger.Info("worker metrics listener started", zap.Int("port", cfg.WorkerMetricsPort))
		return admin.Listen(fmt.Sprintf(":%d", cfg.WorkerMetricsPort))
	})
	g.Go(func() error {
		<-gctx.Done()
		return admin.ShutdownWithTimeout(shutdownTimeout)
	})

	if cfg.AirtableEnabled() {
		airtableSync, err := newAirtableSync(cfg, repo, rdb, logger)
		if err != nil {
			logger.Fatal("airtable sync initialization failed", zap.Error(err))
		}
		airtableSync.SetMetrics(metrics)

		g.Go(func() error {
			return airtableSync.Start(gctx)
		})
	} else {
		logger.Info("airtable sync disabled, credentials not configured")
	}

	logger.Info("outbound-shipments worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Bool("airtable_sync", cfg.AirtableEnabled()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	logger.Info("outbound-shipments worker stopped")
}

// newAdminApp serves /metrics, /livez and /readyz for the worker process.
func newAdminApp(metrics *observability.Metrics, sqlDB *sql.DB, rdb *goredis.Client, rabbit *queue.RabbitMQ) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "outbound-shipments-worker",
		DisableStartupMessage: true,
	})
	handler.RegisterMetricsRoute(app, metrics)
	handler.RegisterHealthRoutes(app, sqlDB, rdb, handler.ReadinessCheck{
		Name:  "rabbitmq",
		Check: rabbit.Ping,
	})
	return app
}

// newAirtableSync builds the Airtable push loop. Every worker replica draws
// from the same redis window.
func newAirtableSync(
	cfg *config.Config,
	repo repository.ShipmentRepository,
	rdb *goredis.Client,
	logger *zap.Logger,
) (*service.AirtableSync, error) {
	client, err := airtable.NewClient(cfg.AirtableAPIURL, cfg.AirtableAPIKey, cfg.AirtableBaseID, cfg.AirtableTable)
	if err != nil {
		return nil, err
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, "airtable", cfg.AirtableRateLimitPerSec)
	if err != nil {
		return nil, err
	}

	return service.NewAirtableSync(
		repo,
		client,
		limiter,
		cfg.AirtableSyncInterval(),
		cfg.AirtableSyncBatch,
		logger,
	)
}
