package main

import (
	"context"
	"log"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/internal/config"
	"github.com/remindly/backend/internal/dispatch"
	"github.com/remindly/backend/internal/infrastructure/buffer"
	"github.com/remindly/backend/internal/infrastructure/monitor"
	pgInfra "github.com/remindly/backend/internal/infrastructure/postgres"
	redisInfra "github.com/remindly/backend/internal/infrastructure/redis"
	"github.com/remindly/backend/internal/notify"
	"github.com/remindly/backend/internal/queue"
	"github.com/remindly/backend/internal/retry"
	"github.com/remindly/backend/internal/services"
	"github.com/remindly/backend/internal/services/lifecycle"
	"github.com/remindly/backend/internal/worker"
	"github.com/remindly/backend/pkg/logger"
	"github.com/remindly/backend/repository/postgres"
)

// The worker binary owns everything that fires after a request returns:
// draining the delayed queue, the overdue reconciliation sweep, retention
// and notification redelivery. It can run as many replicas as needed; the
// storage-level conditional transition keeps executions exactly-once.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  "worker",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	bufferStore, err := buffer.Open(cfg.Notify.BufferPath, "notifications")
	if err != nil {
		zapLogger.Fatal("failed to open notification buffer", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(pool, redisClient, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	clk := clock.New()
	reminderRepo := postgres.NewReminderRepository(pool)
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Queue.Key)

	var sender notify.Sender
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	} else {
		sender = notify.NewLogSender(zapLogger)
	}
	notifier := notify.NewBufferedNotifier(sender, bufferStore, zapLogger)

	policy := retry.Policy{
		MaxAttempts: cfg.Reminder.RetryAttempts,
		Backoff:     cfg.Reminder.RetryBackoff,
	}
	dispatcher := dispatch.New(reminderRepo, jobQueue, notifier, clk, policy, zapLogger)

	workerPool := worker.New(jobQueue, dispatcher, clk, zapLogger, worker.Config{
		PollInterval: cfg.Queue.PollInterval,
		BatchSize:    cfg.Queue.BatchSize,
		Concurrency:  cfg.Queue.Concurrency,
	})
	workerPool.Start()
	manager.Register("worker_pool", func(ctx context.Context) error {
		workerPool.Stop(ctx)
		return nil
	})

	reconciler := services.NewReconciler(reminderRepo, dispatcher, clk, zapLogger, services.ReconcilerConfig{
		Interval:  cfg.Reminder.ReconcileInterval,
		BatchSize: cfg.Reminder.ReconcileBatch,
	})
	reconciler.Start()
	manager.Register("reconciler", func(ctx context.Context) error {
		reconciler.Stop(ctx)
		return nil
	})

	retention := services.NewRetention(reminderRepo, clk, zapLogger, services.RetentionConfig{
		Window:   cfg.Reminder.RetentionWindow,
		Interval: cfg.Reminder.RetentionInterval,
	})
	retention.Start()
	manager.Register("retention", func(ctx context.Context) error {
		retention.Stop(ctx)
		return nil
	})

	redelivery := services.NewRedelivery(bufferStore, sender, zapLogger, services.RedeliveryConfig{
		Interval:   cfg.Notify.RedeliveryInterval,
		MaxRetries: cfg.Notify.MaxRedeliveries,
	})
	redelivery.Start()
	manager.Register("redelivery", func(ctx context.Context) error {
		redelivery.Stop(ctx)
		return nil
	})

	zapLogger.Info("worker started",
		zap.String("queue_key", cfg.Queue.Key),
		zap.Duration("reconcile_interval", cfg.Reminder.ReconcileInterval),
	)

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
