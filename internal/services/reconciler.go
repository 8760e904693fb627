package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/remindly/backend/repository"
)

// Executor is the execution entry point the reconciler re-invokes.
type Executor interface {
	Execute(ctx context.Context, reminderID string) error
}

// ReconcilerConfig controls sweep cadence and batch size.
type ReconcilerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Reconciler periodically re-fires pending reminders whose scheduled time
// has passed. It is the recovery path for queue outages and process
// restarts where a scheduled job never fired. It may race with the
// queue-triggered path on the same reminder; double-firing is prevented
// entirely by the conditional transition inside Execute, not by anything
// here.
type Reconciler struct {
	reminders repository.ReminderRepository
	executor  Executor
	clk       clock.Clock
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       ReconcilerConfig
}

func NewReconciler(
	reminders repository.ReminderRepository,
	executor Executor,
	clk clock.Clock,
	logger *zap.Logger,
	cfg ReconcilerConfig,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reconciler{
		reminders: reminders,
		executor:  executor,
		clk:       clk,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := r.Sweep(ctx); err != nil {
			// per-run failure; the next tick simply tries again
			r.logger.Error("reconciliation sweep failed", zap.Error(err))
		}
	})

	return r
}

// Start launches the cron scheduler.
func (r *Reconciler) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("overdue reconciler started", zap.Duration("interval", r.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (r *Reconciler) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("overdue reconciler stopped")
}

// Sweep runs one reconciliation pass synchronously: every pending
// reminder past its scheduled time is handed back to the executor.
func (r *Reconciler) Sweep(ctx context.Context) error {
	now := r.clk.Now().UTC()

	overdue, err := r.reminders.ListOverdue(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}

	r.logger.Info("found overdue reminders", zap.Int("count", len(overdue)))

	for _, rem := range overdue {
		if err := r.executor.Execute(ctx, rem.ID); err != nil {
			// scoped to this reminder; the rest of the batch continues
			r.logger.Error("failed to re-fire overdue reminder",
				zap.String("reminder_id", rem.ID), zap.Error(err))
		}
	}
	return nil
}
