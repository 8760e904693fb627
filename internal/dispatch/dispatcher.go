// Package dispatch owns the reminder execution path: handing executions
// to the delayed queue, firing them when due, chaining recurrences and
// marking failures once the retry budget is gone.
package dispatch

import (
	"context"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/notify"
	"github.com/remindly/backend/internal/queue"
	"github.com/remindly/backend/internal/recurrence"
	"github.com/remindly/backend/internal/retry"
	"github.com/remindly/backend/repository"
)

type Dispatcher struct {
	reminders repository.ReminderRepository
	queue     queue.Queue
	notifier  notify.Notifier
	clk       clock.Clock
	policy    retry.Policy
	logger    *zap.Logger
}

func New(
	reminders repository.ReminderRepository,
	q queue.Queue,
	notifier notify.Notifier,
	clk clock.Clock,
	policy retry.Policy,
	logger *zap.Logger,
) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		reminders: reminders,
		queue:     q,
		notifier:  notifier,
		clk:       clk,
		policy:    policy,
		logger:    logger,
	}
}

// Schedule enqueues the reminder's execution at its scheduled instant, or
// immediately if that instant has already passed. The enqueue itself is
// retried on the dispatcher's policy; exhaustion is surfaced to the
// caller as a scheduling failure and says nothing about the reminder's
// own status.
func (d *Dispatcher) Schedule(ctx context.Context, reminder *domain.Reminder) error {
	now := d.clk.Now().UTC()
	eta := reminder.ScheduledTime.UTC()
	if !eta.After(now) {
		eta = now
	}

	job := queue.Job{
		Name:       queue.JobExecuteReminder,
		ReminderID: reminder.ID,
		ETA:        eta,
	}

	var ref string
	err := retry.Do(ctx, d.clk, d.policy, func() error {
		var enqErr error
		ref, enqErr = d.queue.Enqueue(ctx, job)
		if enqErr != nil {
			d.logger.Warn("enqueue failed, will retry",
				zap.String("reminder_id", reminder.ID), zap.Error(enqErr))
		}
		return enqErr
	})
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "failed to schedule reminder", err)
	}

	reminder.DispatchRef = ref
	if err := d.reminders.SetDispatchRef(ctx, reminder.ID, ref); err != nil {
		// diagnostics only, never correctness
		d.logger.Warn("failed to store dispatch ref",
			zap.String("reminder_id", reminder.ID), zap.Error(err))
	}

	d.logger.Info("reminder scheduled",
		zap.String("reminder_id", reminder.ID),
		zap.Time("eta", eta),
		zap.Duration("delay", eta.Sub(now)),
	)
	return nil
}

// Execute fires a reminder. It is invoked by the queue worker at the
// scheduled instant and re-invoked by the reconciliation sweep, possibly
// concurrently for the same reminder; the conditional pending→completed
// transition in the store is what guarantees at most one of those
// invocations notifies and chains the recurrence.
func (d *Dispatcher) Execute(ctx context.Context, reminderID string) error {
	reminder, err := d.reminders.GetByID(ctx, reminderID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			// already removed by retention
			d.logger.Debug("reminder gone, nothing to execute", zap.String("reminder_id", reminderID))
			return nil
		}
		return err
	}

	now := d.clk.Now().UTC()
	claimed, err := d.reminders.CompleteDue(ctx, reminder.ID, now)
	if err != nil {
		return err
	}
	if !claimed {
		// Cancelled, already executed by a racing worker, or rescheduled
		// into the future. Either way this dispatch is a no-op.
		d.logger.Debug("reminder not claimable, skipping",
			zap.String("reminder_id", reminder.ID),
			zap.String("status", string(reminder.Status)),
		)
		return nil
	}

	if err := d.notifier.Notify(ctx, reminder); err != nil {
		// Delivery is best-effort; the reminder stays completed.
		d.logger.Warn("notification delivery failed",
			zap.String("reminder_id", reminder.ID), zap.Error(err))
	}

	if reminder.Recurring && reminder.RecurrencePattern != "" {
		if err := d.chainNext(ctx, reminder); err != nil {
			return err
		}
	}

	d.logger.Info("reminder executed",
		zap.String("reminder_id", reminder.ID),
		zap.String("content", reminder.Content),
	)
	return nil
}

// ExecuteWithRetry wraps Execute in the retry policy; once the budget is
// exhausted the reminder is marked failed, which also ends any recurrence.
func (d *Dispatcher) ExecuteWithRetry(ctx context.Context, reminderID string) {
	err := retry.Do(ctx, d.clk, d.policy, func() error {
		return d.Execute(ctx, reminderID)
	})
	if err == nil {
		return
	}

	d.logger.Error("reminder execution exhausted retries",
		zap.String("reminder_id", reminderID), zap.Error(err))

	failed, ferr := d.reminders.FailPending(ctx, reminderID, d.clk.Now().UTC())
	if ferr != nil {
		d.logger.Error("failed to mark reminder failed",
			zap.String("reminder_id", reminderID), zap.Error(ferr))
		return
	}
	if failed {
		d.logger.Warn("reminder marked failed", zap.String("reminder_id", reminderID))
	}
}

// chainNext creates and schedules the next occurrence of a recurring
// reminder. The next instant is computed from the completed occurrence's
// original scheduled time, not from when it actually fired, so late
// executions never push the series later.
func (d *Dispatcher) chainNext(ctx context.Context, reminder *domain.Reminder) error {
	next, ok := recurrence.Next(reminder.ScheduledTime, reminder.RecurrencePattern)
	if !ok {
		// Unknown pattern ends the chain; the fired occurrence still
		// completed normally.
		d.logger.Warn("unknown recurrence pattern, ending chain",
			zap.String("reminder_id", reminder.ID),
			zap.String("pattern", reminder.RecurrencePattern),
		)
		return nil
	}

	child, err := d.reminders.Create(ctx, reminder.NextOccurrence(next))
	if err != nil {
		return err
	}

	if err := d.Schedule(ctx, child); err != nil {
		// The occurrence row exists; the overdue sweep will pick it up
		// even if the queue never hears about it.
		d.logger.Error("failed to schedule next occurrence",
			zap.String("reminder_id", child.ID), zap.Error(err))
		return nil
	}

	d.logger.Info("next occurrence created",
		zap.String("reminder_id", reminder.ID),
		zap.String("next_id", child.ID),
		zap.Time("next_time", child.ScheduledTime),
	)
	return nil
}
