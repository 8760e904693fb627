package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/remindly/backend/internal/infrastructure/buffer"
	"github.com/remindly/backend/internal/notify"
)

// RedeliveryConfig controls how the notification buffer is drained.
type RedeliveryConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// Redelivery replays notification deliveries that failed at fire time.
// Deliveries here are strictly best-effort leftovers: the reminders they
// belong to completed long ago, so dropping one after the retry budget
// only loses a notification, never state.
type Redelivery struct {
	store  *buffer.Store
	sender notify.Sender
	logger *zap.Logger
	cron   *cron.Cron
	cfg    RedeliveryConfig
}

func NewRedelivery(
	store *buffer.Store,
	sender notify.Sender,
	logger *zap.Logger,
	cfg RedeliveryConfig,
) *Redelivery {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rd := &Redelivery{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = rd.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := rd.Drain(ctx); err != nil {
			rd.logger.Error("notification redelivery failed", zap.Error(err))
		}
	})

	return rd
}

func (rd *Redelivery) Start() {
	if rd == nil || rd.cron == nil {
		return
	}
	rd.cron.Start()
	rd.logger.Info("notification redelivery started")
}

func (rd *Redelivery) Stop(ctx context.Context) {
	if rd == nil || rd.cron == nil {
		return
	}
	stopCtx := rd.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rd.logger.Info("notification redelivery stopped")
}

// Drain replays buffered deliveries synchronously.
func (rd *Redelivery) Drain(ctx context.Context) error {
	if rd == nil || rd.store == nil {
		return nil
	}

	items, err := rd.store.GetBatch(rd.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		var delivery notify.Delivery
		if err := json.Unmarshal(item.Payload, &delivery); err != nil {
			rd.logger.Warn("dropping malformed buffered notification", zap.String("item_id", item.ID))
			_ = rd.store.Remove(item)
			continue
		}

		if err := rd.sender.Send(ctx, delivery); err != nil {
			item.Retries++
			if item.Retries >= rd.cfg.MaxRetries {
				rd.logger.Warn("dropping notification (max retries reached)",
					zap.String("reminder_id", item.ReminderID))
				_ = rd.store.Remove(item)
				continue
			}
			if err := rd.store.Remove(item); err != nil {
				rd.logger.Warn("failed to remove buffered notification", zap.Error(err))
			}
			if err := rd.store.Requeue(item); err != nil {
				rd.logger.Error("failed to requeue notification", zap.Error(err))
			}
			continue
		}

		if err := rd.store.Remove(item); err != nil {
			rd.logger.Warn("failed to purge delivered notification", zap.Error(err))
		}
	}
	return nil
}
