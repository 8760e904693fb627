package services

import (
	"context"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/dispatch"
	"github.com/remindly/backend/internal/notify"
	"github.com/remindly/backend/internal/queue"
	"github.com/remindly/backend/internal/retry"
	"github.com/remindly/backend/repository/inmem"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, *domain.Reminder) error { return nil }

var _ notify.Notifier = nopNotifier{}

func TestSweepCompletesMissedReminder(t *testing.T) {
	repo := inmem.NewRepository()
	clk := clock.NewFake()
	d := dispatch.New(repo, queue.NewInMemQueue(), nopNotifier{}, clk, retry.Policy{MaxAttempts: 1}, zap.NewNop())
	r := NewReconciler(repo, d, clk, zap.NewNop(), ReconcilerConfig{})

	// Simulate a missed dispatch: the reminder landed in storage but the
	// queue never fired it.
	now := clk.Now().UTC()
	missed, err := repo.Create(context.Background(), &domain.Reminder{
		OwnerID:       "default",
		Content:       "water plants",
		ScheduledTime: now.Add(-2 * time.Hour),
		Status:        domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), missed.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed after sweep", stored.Status)
	}
}

func TestSweepLeavesFutureRemindersAlone(t *testing.T) {
	repo := inmem.NewRepository()
	clk := clock.NewFake()
	d := dispatch.New(repo, queue.NewInMemQueue(), nopNotifier{}, clk, retry.Policy{MaxAttempts: 1}, zap.NewNop())
	r := NewReconciler(repo, d, clk, zap.NewNop(), ReconcilerConfig{})

	now := clk.Now().UTC()
	future, err := repo.Create(context.Background(), &domain.Reminder{
		OwnerID:       "default",
		Content:       "water plants",
		ScheduledTime: now.Add(2 * time.Hour),
		Status:        domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), future.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %s, want still pending", stored.Status)
	}
}
