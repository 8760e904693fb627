package repository

import (
	"context"
	"time"

	"github.com/remindly/backend/domain"
)

// ReminderFilter narrows List results.
type ReminderFilter struct {
	OwnerID string
	Status  string
	Limit   int
}

// ReminderRepository is the persistence port for reminders.
//
// Every pending→terminal transition is a conditional operation that
// succeeds only while the row is still pending. Callers use the returned
// bool to learn whether they won the transition; concurrent workers racing
// on the same reminder must never both observe success. This is the single
// mutual-exclusion primitive in the system: there is no in-process locking
// around reminder state.
type ReminderRepository interface {
	Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error)
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	List(ctx context.Context, filter ReminderFilter) ([]domain.Reminder, error)
	Upcoming(ctx context.Context, ownerID string, after time.Time, limit int) ([]domain.Reminder, error)

	// UpdatePending rewrites content, scheduled time and recurrence settings
	// while the reminder is still pending and owned by reminder.OwnerID.
	UpdatePending(ctx context.Context, reminder *domain.Reminder) (bool, error)

	// CancelPending transitions pending→cancelled for the owner's reminder.
	CancelPending(ctx context.Context, id, ownerID string, now time.Time) (bool, error)

	// CompleteDue atomically claims a reminder for execution: it transitions
	// pending→completed and stamps completed_at, but only if the reminder is
	// still pending and its scheduled time has arrived. The dueness check is
	// what turns a dispatch superseded by a reschedule into a no-op.
	CompleteDue(ctx context.Context, id string, now time.Time) (bool, error)

	// FailPending transitions pending→failed after the execution retry
	// budget is exhausted.
	FailPending(ctx context.Context, id string, now time.Time) (bool, error)

	// SetDispatchRef records the queue handle for diagnostics. Never used
	// for correctness.
	SetDispatchRef(ctx context.Context, id, ref string) error

	// ListOverdue returns pending reminders whose scheduled time has passed,
	// oldest first. Used by the reconciliation sweep.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error)

	// DeleteTerminalBefore bulk-deletes terminal reminders created before
	// the cutoff. Returns the number of rows removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
