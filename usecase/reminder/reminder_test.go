package reminder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/timeparse"
	"github.com/remindly/backend/repository"
	"github.com/remindly/backend/repository/inmem"
)

type fakeScheduler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *fakeScheduler) Schedule(_ context.Context, rem *domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, rem.ID)
	return nil
}

type fixedResolver struct{}

func (fixedResolver) Resolve(text string, loc *time.Location, base time.Time) (time.Time, bool) {
	if strings.Contains(strings.ToLower(text), "in 2 hours") {
		return base.Add(2 * time.Hour), true
	}
	return time.Time{}, false
}

type testEnv struct {
	repo  *inmem.Repository
	sched *fakeScheduler
	clk   clock.FakeClock
	uc    *UseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		repo:  inmem.NewRepository(),
		sched: &fakeScheduler{},
		clk:   clock.NewFake(),
	}
	parser := timeparse.NewParser(fixedResolver{}, zap.NewNop())
	e.uc = New(e.repo, parser, e.sched, e.clk, "America/Toronto", zap.NewNop())
	return e
}

func TestCreateSchedulesDispatch(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()

	rem, err := e.uc.Create(context.Background(), CreateInput{
		OwnerID:       "default",
		Content:       "call mom",
		ScheduledTime: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rem.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", rem.Status)
	}
	if len(e.sched.calls) != 1 || e.sched.calls[0] != rem.ID {
		t.Errorf("schedule calls = %v, want [%s]", e.sched.calls, rem.ID)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()

	if _, err := e.uc.Create(context.Background(), CreateInput{OwnerID: "default", ScheduledTime: now}); err == nil {
		t.Error("Create without content succeeded")
	}
	if _, err := e.uc.Create(context.Background(), CreateInput{OwnerID: "default", Content: "x"}); err == nil {
		t.Error("Create without time succeeded")
	}
}

func TestCreateFromText(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now()

	rem, err := e.uc.CreateFromText(context.Background(), "default", "remind me to take medicine in 2 hours", "")
	if err != nil {
		t.Fatalf("CreateFromText: %v", err)
	}

	if rem.Content != "take medicine in 2 hours" {
		t.Errorf("content = %q, want boilerplate stripped", rem.Content)
	}
	if want := now.Add(2 * time.Hour); !rem.ScheduledTime.Equal(want) {
		t.Errorf("scheduled_time = %v, want %v", rem.ScheduledTime, want)
	}
	if rem.Context["original_text"] != "remind me to take medicine in 2 hours" {
		t.Error("original text not kept in context")
	}
	if rem.Context["timezone"] != "America/Toronto" {
		t.Errorf("timezone = %q, want default applied", rem.Context["timezone"])
	}
}

func TestCreateFromTextAmbiguousTime(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.uc.CreateFromText(context.Background(), "default", "remind me to call mom at some point", "")
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("err = %v, want ambiguous-time invalid error", err)
	}

	// Nothing was created.
	all, _ := e.repo.List(context.Background(), repository.ReminderFilter{OwnerID: "default"})
	if len(all) != 0 {
		t.Errorf("reminders created on parse failure: %d", len(all))
	}
}

func TestCancelPendingReminder(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "x", ScheduledTime: now.Add(time.Hour),
	})

	if err := e.uc.Cancel(context.Background(), "default", rem.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", stored.Status)
	}
}

func TestCancelCompletedReminderFails(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "x", ScheduledTime: now.Add(-time.Hour),
	})
	if ok, _ := e.repo.CompleteDue(context.Background(), rem.ID, now); !ok {
		t.Fatal("complete failed")
	}

	err := e.uc.Cancel(context.Background(), "default", rem.ID)
	if !domain.IsDomainError(err, domain.ErrCodeConflict) {
		t.Fatalf("err = %v, want not-pending conflict", err)
	}
	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status changed to %s", stored.Status)
	}
}

func TestCancelForeignReminderFails(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "someone-else", Content: "x", ScheduledTime: now.Add(time.Hour),
	})

	err := e.uc.Cancel(context.Background(), "default", rem.ID)
	if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestUpdateReschedulesOnTimeChange(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "x", ScheduledTime: now.Add(time.Hour),
	})
	schedCallsBefore := len(e.sched.calls)

	newTime := now.Add(5 * time.Hour)
	updated, err := e.uc.Update(context.Background(), "default", rem.ID, UpdateInput{ScheduledTime: &newTime})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.ScheduledTime.Equal(newTime) {
		t.Errorf("scheduled_time = %v, want %v", updated.ScheduledTime, newTime)
	}
	if len(e.sched.calls) != schedCallsBefore+1 {
		t.Errorf("time change did not enqueue a new dispatch")
	}
}

func TestUpdateWithoutTimeChangeDoesNotReschedule(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "x", ScheduledTime: now.Add(time.Hour),
	})
	schedCallsBefore := len(e.sched.calls)

	content := "y"
	if _, err := e.uc.Update(context.Background(), "default", rem.ID, UpdateInput{Content: &content}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(e.sched.calls) != schedCallsBefore {
		t.Errorf("content-only update enqueued a dispatch")
	}
}

func TestUpdateNonPendingFails(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()
	rem, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "x", ScheduledTime: now.Add(time.Hour),
	})
	_ = e.uc.Cancel(context.Background(), "default", rem.ID)

	content := "y"
	_, err := e.uc.Update(context.Background(), "default", rem.ID, UpdateInput{Content: &content})
	if !domain.IsDomainError(err, domain.ErrCodeConflict) {
		t.Fatalf("err = %v, want not-pending conflict", err)
	}
}

func TestUpcomingExcludesPastAndTerminal(t *testing.T) {
	e := newTestEnv(t)
	now := e.clk.Now().UTC()

	future, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "future", ScheduledTime: now.Add(time.Hour),
	})
	past, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "past", ScheduledTime: now.Add(-time.Hour),
	})
	cancelled, _ := e.uc.Create(context.Background(), CreateInput{
		OwnerID: "default", Content: "cancelled", ScheduledTime: now.Add(2 * time.Hour),
	})
	_ = e.uc.Cancel(context.Background(), "default", cancelled.ID)

	upcoming, err := e.uc.Upcoming(context.Background(), "default", 10)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != future.ID {
		t.Errorf("upcoming = %+v, want only %s (not %s)", upcoming, future.ID, past.ID)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.uc.List(context.Background(), "default", "archived", 10); err == nil {
		t.Error("List with unknown status succeeded")
	}
}
