package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/outbound-shipments/internal/config"
	"github.com/kursadbilgin/outbound-shipments/internal/handler"
	"github.com/kursadbilgin/outbound-shipments/internal/infra/postgresql"
	"github.com/kursadbilgin/outbound-shipments/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/outbound-shipments/internal/infra/redis"
	"github.com/kursadbilgin/outbound-shipments/internal/observability"
	"github.com/kursadbilgin/outbound-shipments/internal/queue"
	"github.com/kursadbilgin/outbound-shipments/internal/repository"
	"github.com/kursadbilgin/outbound-shipments/internal/service"
	"github.com/kursadbilgin/outbound-shipments/internal/transport"
	"go.uber.org/zap"
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

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
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

	limiter, err := infraredis.NewRedisRateLimiter(rdb, "api", cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	shipments, err := service.NewShipmentService(
		repository.NewGormShipmentRepo(db),
		cache,
		queue.NewRabbitMQPublisher(rabbit),
		logger,
	)
	if err != nil {
		logger.Fatal("shipment service initialization failed", zap.Error(err))
	}
	shipments.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:      "outbound-shipments",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterMetricsRoute(app, metrics)
	handler.RegisterHealthRoutes(app, sqlDB, rdb, handler.ReadinessCheck{
		Name:  "rabbitmq",
		Check: rabbit.Ping,
	})

	app.Use(transport.RateLimit(limiter, logger))
	if err := handler.RegisterShipmentRoutes(app, shipments); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("outbound-shipments api started", zap.Int("port", cfg.APIPort))
		serverErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("api server stopped", zap.Error(err))
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
	logger.Info("outbound-shipments api stopped")
}
