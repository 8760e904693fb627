package reminder

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/timeparse"
	"github.com/remindly/backend/repository"
)

// Scheduler hands a persisted reminder's execution to the delayed queue.
type Scheduler interface {
	Schedule(ctx context.Context, reminder *domain.Reminder) error
}

// UseCase orchestrates reminder creation, cancellation and updates.
type UseCase struct {
	reminders  repository.ReminderRepository
	parser     *timeparse.Parser
	dispatcher Scheduler
	clk        clock.Clock
	defaultTZ  string
	logger     *zap.Logger
}

func New(
	reminders repository.ReminderRepository,
	parser *timeparse.Parser,
	dispatcher Scheduler,
	clk clock.Clock,
	defaultTZ string,
	logger *zap.Logger,
) *UseCase {
	if clk == nil {
		clk = clock.New()
	}
	if defaultTZ == "" {
		defaultTZ = "America/Toronto"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		reminders:  reminders,
		parser:     parser,
		dispatcher: dispatcher,
		clk:        clk,
		defaultTZ:  defaultTZ,
		logger:     logger,
	}
}

// CreateInput carries an explicit creation request.
type CreateInput struct {
	OwnerID           string
	Content           string
	ScheduledTime     time.Time
	Recurring         bool
	RecurrencePattern string
	Context           map[string]string
}

// Create persists a pending reminder and schedules its execution. Beyond
// presence of content and a time, nothing is validated; the caller owns
// the instant. A scheduling failure after the enqueue retry budget is
// surfaced to the caller; the stored row stays pending and the overdue
// sweep will eventually fire it regardless.
func (uc *UseCase) Create(ctx context.Context, in CreateInput) (*domain.Reminder, error) {
	if in.Content == "" || in.ScheduledTime.IsZero() {
		return nil, domain.ErrInvalidPayload
	}

	created, err := uc.reminders.Create(ctx, &domain.Reminder{
		OwnerID:           in.OwnerID,
		Content:           in.Content,
		ScheduledTime:     in.ScheduledTime.UTC(),
		Status:            domain.StatusPending,
		Recurring:         in.Recurring,
		RecurrencePattern: in.RecurrencePattern,
		Context:           in.Context,
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("reminder created",
		zap.String("reminder_id", created.ID),
		zap.String("content", created.Content),
		zap.Time("scheduled_time", created.ScheduledTime),
	)

	if err := uc.dispatcher.Schedule(ctx, created); err != nil {
		return nil, err
	}
	return created, nil
}

// CreateFromText extracts a time and content from free-form text and
// delegates to Create. When no time can be determined the caller gets an
// explicit ambiguous-time error and nothing is created.
func (uc *UseCase) CreateFromText(ctx context.Context, ownerID, text, timezone string) (*domain.Reminder, error) {
	if text == "" {
		return nil, domain.ErrInvalidPayload
	}
	if timezone == "" {
		timezone = uc.defaultTZ
	}

	scheduled, ok := uc.parser.Parse(text, timezone, uc.clk.Now())
	if !ok {
		uc.logger.Warn("could not extract time from text", zap.String("text", text))
		return nil, domain.ErrAmbiguousTime
	}

	return uc.Create(ctx, CreateInput{
		OwnerID:       ownerID,
		Content:       timeparse.ExtractContent(text),
		ScheduledTime: scheduled,
		Context: map[string]string{
			"original_text": text,
			"timezone":      timezone,
		},
	})
}

// Cancel transitions the owner's pending reminder to cancelled. It does
// not revoke any in-flight queue job; the execution guard is what makes a
// cancellation effective.
func (uc *UseCase) Cancel(ctx context.Context, ownerID, id string) error {
	ok, err := uc.reminders.CancelPending(ctx, id, ownerID, uc.clk.Now().UTC())
	if err != nil {
		return err
	}
	if ok {
		uc.logger.Info("reminder cancelled", zap.String("reminder_id", id))
		return nil
	}

	// Distinguish missing from not-pending for the caller.
	rem, err := uc.reminders.GetByID(ctx, id)
	if err != nil || rem.OwnerID != ownerID {
		return domain.ErrReminderNotFound
	}
	return domain.ErrNotPending
}

// UpdateInput carries the mutable fields; nil means "leave unchanged".
type UpdateInput struct {
	Content           *string
	ScheduledTime     *time.Time
	Recurring         *bool
	RecurrencePattern *string
}

// Update rewrites a pending reminder. When the scheduled time changes, a
// new dispatch is enqueued for the new instant; the old dispatch becomes
// a no-op through the execution guard's dueness check.
func (uc *UseCase) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*domain.Reminder, error) {
	rem, err := uc.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem.OwnerID != ownerID {
		return nil, domain.ErrReminderNotFound
	}
	if rem.Status != domain.StatusPending {
		return nil, domain.ErrNotPending
	}

	timeChanged := false
	if in.Content != nil {
		rem.Content = *in.Content
	}
	if in.ScheduledTime != nil && !in.ScheduledTime.UTC().Equal(rem.ScheduledTime) {
		rem.ScheduledTime = in.ScheduledTime.UTC()
		timeChanged = true
	}
	if in.Recurring != nil {
		rem.Recurring = *in.Recurring
	}
	if in.RecurrencePattern != nil {
		rem.RecurrencePattern = *in.RecurrencePattern
	}
	if rem.Content == "" {
		return nil, domain.ErrInvalidPayload
	}

	ok, err := uc.reminders.UpdatePending(ctx, rem)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race with execution or cancellation
		return nil, domain.ErrNotPending
	}

	if timeChanged {
		if err := uc.dispatcher.Schedule(ctx, rem); err != nil {
			return nil, err
		}
	}
	return rem, nil
}

// Get returns the owner's reminder.
func (uc *UseCase) Get(ctx context.Context, ownerID, id string) (*domain.Reminder, error) {
	rem, err := uc.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem.OwnerID != ownerID {
		return nil, domain.ErrReminderNotFound
	}
	return rem, nil
}

// List returns the owner's reminders, most recent scheduled first.
func (uc *UseCase) List(ctx context.Context, ownerID, status string, limit int) ([]domain.Reminder, error) {
	if status != "" {
		if _, ok := domain.ParseStatus(status); !ok {
			return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid status filter", nil)
		}
	}
	return uc.reminders.List(ctx, repository.ReminderFilter{
		OwnerID: ownerID,
		Status:  status,
		Limit:   limit,
	})
}

// Upcoming returns the owner's future pending reminders, soonest first.
func (uc *UseCase) Upcoming(ctx context.Context, ownerID string, limit int) ([]domain.Reminder, error) {
	return uc.reminders.Upcoming(ctx, ownerID, uc.clk.Now().UTC(), limit)
}
