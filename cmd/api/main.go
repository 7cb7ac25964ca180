package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"notify-gateway/internal/api"
	"notify-gateway/internal/config"
	"notify-gateway/internal/db"
	"notify-gateway/internal/dispatch"
	"notify-gateway/internal/events"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/preferences"
	"notify-gateway/internal/provider"
	"notify-gateway/internal/queue"
	"notify-gateway/internal/rate"
)

//	@title			Notification Gateway API
//	@version		1.0
//	@description	Multi-channel notification dispatch with per-user preferences, retry scheduling and dead-letter inspection.
//	@host			localhost:8080
//	@BasePath		/

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.LoggerForEnv(cfg.GoEnv, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting notification gateway API",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.GoEnv))

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	shutdownOtel, err := observability.SetupOpenTelemetry("notify-gateway-api", logger)
	if err != nil {
		logger.Warn("OpenTelemetry setup failed", zap.Error(err))
	} else {
		defer shutdownOtel()
	}

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.RunMigrations("migrations"); err != nil {
		logger.Warn("failed to run migrations", zap.Error(err))
	}

	redisDB, err := db.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisDB.Close()

	// Lifecycle events are best effort; the gateway keeps accepting
	// submissions when NATS is down.
	var pub events.Publisher = events.NopPublisher{}
	if natsPub, err := events.NewNATSPublisher(cfg.NATSURL, logger); err != nil {
		logger.Warn("NATS unavailable, lifecycle events disabled", zap.Error(err))
	} else {
		defer natsPub.Close()
		pub = natsPub
	}

	broker := queue.NewRedisBroker(redisDB.Client, queue.Config{
		CompletedRetention: cfg.CompletedRetention,
		CompletedCap:       cfg.CompletedRetentionCount,
		FailedRetention:    cfg.FailedRetention,
		LockTTL:            cfg.QueueLockTTL,
	}, logger)

	store := notifications.NewPostgresStore(postgres, logger)
	prefs := preferences.NewPostgresStore(postgres, logger)
	registry := provider.NewRegistryFromConfig(cfg, logger)

	dispatcher := dispatch.NewDispatcher(store, prefs, broker, registry, pub, metrics, cfg, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitEnabled {
		limiter = rate.NewLimiter(redisDB.Client, logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handlers := api.NewHandlers(logger, dispatcher, store, prefs, broker, postgres, redisDB.Client)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	api.SetupRoutes(app, logger, metrics, handlers, limiter, cfg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	logger.Info("notification gateway API started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("failed to shut down gracefully", zap.Error(err))
	}

	logger.Info("notification gateway stopped")
}
