package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"notify-gateway/internal/config"
	"notify-gateway/internal/db"
	"notify-gateway/internal/events"
	"notify-gateway/internal/notifications"
	"notify-gateway/internal/observability"
	"notify-gateway/internal/provider"
	"notify-gateway/internal/queue"
	"notify-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.LoggerForEnv(cfg.GoEnv, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting notification worker",
		zap.Int("queue_concurrency", cfg.QueueConcurrency),
		zap.Int("priority_queue_concurrency", cfg.PriorityQueueConcurrency))

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	shutdownOtel, err := observability.SetupOpenTelemetry("notify-gateway-worker", logger)
	if err != nil {
		logger.Warn("OpenTelemetry setup failed", zap.Error(err))
	} else {
		defer shutdownOtel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	postgres, err := db.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	redisDB, err := db.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisDB.Close()

	var pub events.Publisher = events.NopPublisher{}
	natsPub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
	if err != nil {
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
	registry := provider.NewRegistryFromConfig(cfg, logger)
	runner := worker.NewRunner(store, broker, registry, pub, metrics, cfg, logger)

	regularPool := worker.NewPool(queue.QueueRegular, cfg.QueueConcurrency, runner, broker, metrics, cfg, logger)
	priorityPool := worker.NewPool(queue.QueuePriority, cfg.PriorityQueueConcurrency, runner, broker, metrics, cfg, logger)
	reaper := worker.NewReaper(store, broker, cfg, logger)

	regularPool.Start(ctx)
	priorityPool.Start(ctx)
	reaper.Start(ctx)

	// Dead letter monitoring only; the dead letter queue itself is never
	// consumed by workers.
	if natsPub != nil {
		sub, err := natsPub.SubscribeDeadLetters(func(ev events.Event) {
			logger.Warn("notification dead-lettered",
				zap.String("transaction_id", ev.TransactionID),
				zap.String("channel", ev.Channel),
				zap.String("reason", ev.Reason))
		})
		if err != nil {
			logger.Error("failed to subscribe to dead letter events", zap.Error(err))
		} else {
			defer sub.Unsubscribe()
		}
	}

	logger.Info("worker started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")

	priorityPool.Stop(cfg.ShutdownTimeout)
	regularPool.Stop(cfg.ShutdownTimeout)
	reaper.Stop()
	cancel()

	logger.Info("worker shutdown complete")
}
