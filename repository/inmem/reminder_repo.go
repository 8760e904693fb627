package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/repository"
)

// Repository is an in-memory ReminderRepository with the same conditional
// transition semantics as the Postgres implementation. All reads and
// conditional writes happen under one mutex, so a transition observed as
// won by one caller is guaranteed lost by every concurrent caller.
type Repository struct {
	mu        sync.Mutex
	reminders map[string]*domain.Reminder
}

func NewRepository() *Repository {
	return &Repository{reminders: make(map[string]*domain.Reminder)}
}

func (r *Repository) Create(_ context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	if reminder == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Status == "" {
		reminder.Status = domain.StatusPending
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
	reminder.ScheduledTime = reminder.ScheduledTime.UTC()

	stored := clone(reminder)
	r.reminders[reminder.ID] = stored
	return clone(stored), nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	return clone(rem), nil
}

func (r *Repository) List(_ context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Reminder
	for _, rem := range r.reminders {
		if filter.OwnerID != "" && rem.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && string(rem.Status) != filter.Status {
			continue
		}
		out = append(out, *clone(rem))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.After(out[j].ScheduledTime)
	})
	return truncate(out, filter.Limit), nil
}

func (r *Repository) Upcoming(_ context.Context, ownerID string, after time.Time, limit int) ([]domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Reminder
	for _, rem := range r.reminders {
		if rem.OwnerID != ownerID || rem.Status != domain.StatusPending {
			continue
		}
		if rem.ScheduledTime.Before(after) {
			continue
		}
		out = append(out, *clone(rem))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return truncate(out, limit), nil
}

func (r *Repository) UpdatePending(_ context.Context, reminder *domain.Reminder) (bool, error) {
	if reminder == nil {
		return false, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[reminder.ID]
	if !ok || rem.OwnerID != reminder.OwnerID || rem.Status != domain.StatusPending {
		return false, nil
	}
	rem.Content = reminder.Content
	rem.ScheduledTime = reminder.ScheduledTime.UTC()
	rem.Recurring = reminder.Recurring
	rem.RecurrencePattern = reminder.RecurrencePattern
	rem.Context = reminder.Context
	return true, nil
}

func (r *Repository) CancelPending(_ context.Context, id, ownerID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.OwnerID != ownerID || rem.Status != domain.StatusPending {
		return false, nil
	}
	rem.Status = domain.StatusCancelled
	at := now.UTC()
	rem.CompletedAt = &at
	return true, nil
}

func (r *Repository) CompleteDue(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != domain.StatusPending || rem.ScheduledTime.After(now) {
		return false, nil
	}
	rem.Status = domain.StatusCompleted
	at := now.UTC()
	rem.CompletedAt = &at
	return true, nil
}

func (r *Repository) FailPending(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok || rem.Status != domain.StatusPending {
		return false, nil
	}
	rem.Status = domain.StatusFailed
	at := now.UTC()
	rem.CompletedAt = &at
	return true, nil
}

func (r *Repository) SetDispatchRef(_ context.Context, id, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rem, ok := r.reminders[id]
	if !ok {
		return domain.ErrReminderNotFound
	}
	rem.DispatchRef = ref
	return nil
}

func (r *Repository) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Reminder
	for _, rem := range r.reminders {
		if rem.Status != domain.StatusPending || rem.ScheduledTime.After(now) {
			continue
		}
		out = append(out, *clone(rem))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return truncate(out, limit), nil
}

func (r *Repository) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, rem := range r.reminders {
		if rem.Status.IsTerminal() && rem.CreatedAt.Before(cutoff) {
			delete(r.reminders, id)
			removed++
		}
	}
	return removed, nil
}

func clone(rem *domain.Reminder) *domain.Reminder {
	cp := *rem
	if rem.CompletedAt != nil {
		at := *rem.CompletedAt
		cp.CompletedAt = &at
	}
	if len(rem.Context) > 0 {
		cp.Context = make(map[string]string, len(rem.Context))
		for k, v := range rem.Context {
			cp.Context[k] = v
		}
	}
	return &cp
}

func truncate(reminders []domain.Reminder, limit int) []domain.Reminder {
	if limit > 0 && len(reminders) > limit {
		return reminders[:limit]
	}
	return reminders
}

var _ repository.ReminderRepository = (*Repository)(nil)
