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

// RetentionConfig controls how long terminal reminders are kept.
type RetentionConfig struct {
	Window   time.Duration
	Interval time.Duration
}

// Retention bulk-deletes reminders that reached a terminal state longer
// ago than the retention window. Pending reminders are never touched, no
// matter how old.
type Retention struct {
	reminders repository.ReminderRepository
	clk       clock.Clock
	logger    *zap.Logger
	cron      *cron.Cron
	cfg       RetentionConfig
}

func NewRetention(
	reminders repository.ReminderRepository,
	clk clock.Clock,
	logger *zap.Logger,
	cfg RetentionConfig,
) *Retention {
	if cfg.Window <= 0 {
		cfg.Window = 30 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := &Retention{
		reminders: reminders,
		clk:       clk,
		logger:    logger,
		cfg:       cfg,
		cron:      cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = rt.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := rt.Sweep(ctx); err != nil {
			rt.logger.Error("retention sweep failed", zap.Error(err))
		}
	})

	return rt
}

func (rt *Retention) Start() {
	if rt == nil || rt.cron == nil {
		return
	}
	rt.cron.Start()
	rt.logger.Info("retention sweep started",
		zap.Duration("window", rt.cfg.Window),
		zap.Duration("interval", rt.cfg.Interval))
}

func (rt *Retention) Stop(ctx context.Context) {
	if rt == nil || rt.cron == nil {
		return
	}
	stopCtx := rt.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rt.logger.Info("retention sweep stopped")
}

// Sweep deletes terminal reminders created before the retention cutoff.
func (rt *Retention) Sweep(ctx context.Context) error {
	cutoff := rt.clk.Now().UTC().Add(-rt.cfg.Window)
	removed, err := rt.reminders.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		rt.logger.Info("old reminders cleaned up", zap.Int64("removed", removed))
	}
	return nil
}
