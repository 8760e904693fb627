package main

import (
	"context"
	"log"
	"time"

	"github.com/jmhodges/clock"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/remindly/backend/api/handler"
	"github.com/remindly/backend/internal/config"
	"github.com/remindly/backend/internal/dispatch"
	"github.com/remindly/backend/internal/infrastructure/buffer"
	"github.com/remindly/backend/internal/infrastructure/monitor"
	pgInfra "github.com/remindly/backend/internal/infrastructure/postgres"
	redisInfra "github.com/remindly/backend/internal/infrastructure/redis"
	"github.com/remindly/backend/internal/notify"
	"github.com/remindly/backend/internal/queue"
	"github.com/remindly/backend/internal/retry"
	"github.com/remindly/backend/internal/router"
	"github.com/remindly/backend/internal/services/lifecycle"
	"github.com/remindly/backend/internal/timeparse"
	"github.com/remindly/backend/pkg/httpcontext"
	"github.com/remindly/backend/pkg/logger"
	"github.com/remindly/backend/repository/postgres"
	reminderUC "github.com/remindly/backend/usecase/reminder"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  "api",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

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

	parser := timeparse.NewParser(timeparse.NewDateparserResolver(), zapLogger)
	reminderUseCase := reminderUC.New(
		reminderRepo,
		parser,
		dispatcher,
		clk,
		cfg.Reminder.DefaultTimezone,
		zapLogger,
	)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Reminder: apiHandler.NewReminderHandler(reminderUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	r := router.New(handlers)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
