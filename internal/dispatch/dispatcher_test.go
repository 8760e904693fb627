package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/queue"
	"github.com/remindly/backend/internal/retry"
	"github.com/remindly/backend/repository"
	"github.com/remindly/backend/repository/inmem"
)

type countingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *countingNotifier) Notify(_ context.Context, reminder *domain.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, reminder.ID)
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// flakyQueue fails the first failures enqueues, then succeeds.
type flakyQueue struct {
	queue.Queue
	mu       sync.Mutex
	failures int
}

func (q *flakyQueue) Enqueue(ctx context.Context, job queue.Job) (string, error) {
	q.mu.Lock()
	fail := q.failures > 0
	if fail {
		q.failures--
	}
	q.mu.Unlock()
	if fail {
		return "", errors.New("queue unavailable")
	}
	return q.Queue.Enqueue(ctx, job)
}

// brokenRepo makes the execution claim fail while everything else works.
type brokenRepo struct {
	repository.ReminderRepository
}

func (r brokenRepo) CompleteDue(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("storage down")
}

type env struct {
	repo     *inmem.Repository
	queue    *queue.InMemQueue
	notifier *countingNotifier
	clk      clock.FakeClock
	d        *Dispatcher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		repo:     inmem.NewRepository(),
		queue:    queue.NewInMemQueue(),
		notifier: &countingNotifier{},
		clk:      clock.NewFake(),
	}
	e.d = New(e.repo, e.queue, e.notifier, e.clk, retry.Policy{MaxAttempts: 3}, zap.NewNop())
	return e
}

func (e *env) pending(t *testing.T, at time.Time, mutate func(*domain.Reminder)) *domain.Reminder {
	t.Helper()
	rem := &domain.Reminder{
		OwnerID:       "default",
		Content:       "take medicine",
		ScheduledTime: at,
		Status:        domain.StatusPending,
	}
	if mutate != nil {
		mutate(rem)
	}
	created, err := e.repo.Create(context.Background(), rem)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestScheduleFutureReminder(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(2*time.Hour), nil)

	if err := e.d.Schedule(context.Background(), rem); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// Not due yet.
	jobs, _ := e.queue.Due(context.Background(), now, 10)
	if len(jobs) != 0 {
		t.Fatalf("job due early: %+v", jobs)
	}
	jobs, _ = e.queue.Due(context.Background(), now.Add(2*time.Hour), 10)
	if len(jobs) != 1 || jobs[0].ReminderID != rem.ID {
		t.Fatalf("jobs = %+v, want one for %s", jobs, rem.ID)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.DispatchRef == "" {
		t.Error("dispatch ref not recorded")
	}
}

func TestScheduleOverdueReminderIsImmediate(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Hour), nil)

	if err := e.d.Schedule(context.Background(), rem); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	jobs, _ := e.queue.Due(context.Background(), now, 10)
	if len(jobs) != 1 {
		t.Fatalf("overdue reminder not immediately due, jobs = %+v", jobs)
	}
}

func TestScheduleRetriesEnqueue(t *testing.T) {
	e := newEnv(t)
	fq := &flakyQueue{Queue: e.queue, failures: 2}
	e.d = New(e.repo, fq, e.notifier, e.clk, retry.Policy{MaxAttempts: 3}, zap.NewNop())

	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(time.Hour), nil)

	if err := e.d.Schedule(context.Background(), rem); err != nil {
		t.Fatalf("Schedule should survive 2 failures: %v", err)
	}

	fq.failures = 3
	rem2 := e.pending(t, now.Add(time.Hour), nil)
	if err := e.d.Schedule(context.Background(), rem2); err == nil {
		t.Fatal("Schedule should fail after exhausting enqueue retries")
	}
}

func TestExecuteCompletesAndNotifies(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), nil)

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if e.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", e.notifier.count())
	}
}

func TestExecuteSkipsCancelledReminder(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), nil)

	if ok, _ := e.repo.CancelPending(context.Background(), rem.ID, rem.OwnerID, now); !ok {
		t.Fatal("cancel failed")
	}

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled (unchanged)", stored.Status)
	}
	if e.notifier.count() != 0 {
		t.Errorf("cancelled reminder produced %d notifications", e.notifier.count())
	}
}

func TestExecuteSkipsRescheduledReminder(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	// Update moved the reminder into the future; the stale dispatch for
	// the old instant must not fire it early.
	rem := e.pending(t, now.Add(3*time.Hour), nil)

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %s, want still pending", stored.Status)
	}
	if e.notifier.count() != 0 {
		t.Errorf("future reminder produced %d notifications", e.notifier.count())
	}
}

func TestExecuteMissingReminderIsNoop(t *testing.T) {
	e := newEnv(t)
	if err := e.d.Execute(context.Background(), "nope"); err != nil {
		t.Fatalf("Execute on missing reminder: %v", err)
	}
}

func TestExecuteNotificationFailureStillCompletes(t *testing.T) {
	e := newEnv(t)
	e.notifier.err = errors.New("webhook down")
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), nil)

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed despite delivery failure", stored.Status)
	}
}

func TestExecuteRecurringCreatesNextOccurrenceWithoutDrift(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	// Scheduled 3 hours ago and only firing now (late); the next
	// occurrence must still be original + 1 day, not firing time + 1 day.
	original := now.Add(-3 * time.Hour)
	rem := e.pending(t, original, func(r *domain.Reminder) {
		r.Recurring = true
		r.RecurrencePattern = "daily"
		r.Context = map[string]string{"original_text": "water plants daily at 9am"}
	})

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	pending, err := e.repo.List(context.Background(), repository.ReminderFilter{Status: string(domain.StatusPending)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending occurrences = %d, want exactly 1", len(pending))
	}

	child := pending[0]
	if want := original.AddDate(0, 0, 1); !child.ScheduledTime.Equal(want) {
		t.Errorf("child scheduled at %v, want %v", child.ScheduledTime, want)
	}
	if child.Content != rem.Content {
		t.Errorf("child content = %q, want %q", child.Content, rem.Content)
	}
	if child.Context["original_text"] != "water plants daily at 9am" {
		t.Error("context not carried to child")
	}
	if !child.Recurring || child.RecurrencePattern != "daily" {
		t.Error("recurrence settings not carried to child")
	}

	// The child's execution is enqueued for its own instant.
	jobs, _ := e.queue.Due(context.Background(), original.AddDate(0, 0, 1), 10)
	found := false
	for _, j := range jobs {
		if j.ReminderID == child.ID {
			found = true
		}
	}
	if !found {
		t.Error("child occurrence was not enqueued")
	}
}

func TestExecuteUnknownPatternEndsChain(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), func(r *domain.Reminder) {
		r.Recurring = true
		r.RecurrencePattern = "fortnightly"
	})

	if err := e.d.Execute(context.Background(), rem.ID); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed despite unknown pattern", stored.Status)
	}
	pending, _ := e.repo.List(context.Background(), repository.ReminderFilter{Status: string(domain.StatusPending)})
	if len(pending) != 0 {
		t.Errorf("unknown pattern still produced %d children", len(pending))
	}
}

func TestExecuteConcurrentlyFiresExactlyOnce(t *testing.T) {
	e := newEnv(t)
	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), func(r *domain.Reminder) {
		r.Recurring = true
		r.RecurrencePattern = "daily"
	})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.d.Execute(context.Background(), rem.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if e.notifier.count() != 1 {
		t.Errorf("notifications = %d, want exactly 1", e.notifier.count())
	}
	pending, _ := e.repo.List(context.Background(), repository.ReminderFilter{Status: string(domain.StatusPending)})
	if len(pending) != 1 {
		t.Errorf("recurrence children = %d, want exactly 1", len(pending))
	}
	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", stored.Status)
	}
}

func TestExecuteWithRetryMarksFailedOnExhaustion(t *testing.T) {
	e := newEnv(t)
	broken := brokenRepo{ReminderRepository: e.repo}
	d := New(broken, e.queue, e.notifier, e.clk, retry.Policy{MaxAttempts: 3}, zap.NewNop())

	now := e.clk.Now().UTC()
	rem := e.pending(t, now.Add(-time.Minute), nil)

	d.ExecuteWithRetry(context.Background(), rem.ID)

	stored, _ := e.repo.GetByID(context.Background(), rem.ID)
	if stored.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed after retry exhaustion", stored.Status)
	}
	if e.notifier.count() != 0 {
		t.Errorf("failed execution still notified %d times", e.notifier.count())
	}
}
