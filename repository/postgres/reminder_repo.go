package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/repository"
)

type reminderRepository struct {
	pool *pgxpool.Pool
}

// NewReminderRepository returns a Postgres-backed implementation of ReminderRepository.
func NewReminderRepository(pool *pgxpool.Pool) repository.ReminderRepository {
	return &reminderRepository{pool: pool}
}

const reminderColumns = `id, owner_id, content, scheduled_time, status, recurring, recurrence_pattern, context, dispatch_ref, created_at, completed_at`

func (r *reminderRepository) Create(ctx context.Context, reminder *domain.Reminder) (*domain.Reminder, error) {
	if reminder == nil {
		return nil, domain.ErrInvalidPayload
	}
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.Status == "" {
		reminder.Status = domain.StatusPending
	}

	const query = `
	INSERT INTO reminders (id, owner_id, content, scheduled_time, status, recurring, recurrence_pattern, context, dispatch_ref)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		reminder.ID,
		reminder.OwnerID,
		reminder.Content,
		reminder.ScheduledTime.UTC(),
		string(reminder.Status),
		reminder.Recurring,
		nullString(reminder.RecurrencePattern),
		marshalMap(reminder.Context),
		nullString(reminder.DispatchRef),
	).Scan(&reminder.CreatedAt); err != nil {
		return nil, err
	}

	return reminder, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	const query = `
	SELECT ` + reminderColumns + `
	FROM reminders
	WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	return scanReminder(row)
}

func (r *reminderRepository) List(ctx context.Context, filter repository.ReminderFilter) ([]domain.Reminder, error) {
	const query = `
	SELECT ` + reminderColumns + `
	FROM reminders
	WHERE ($1 = '' OR owner_id = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY scheduled_time DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, filter.OwnerID, filter.Status, clampLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *reminderRepository) Upcoming(ctx context.Context, ownerID string, after time.Time, limit int) ([]domain.Reminder, error) {
	const query = `
	SELECT ` + reminderColumns + `
	FROM reminders
	WHERE owner_id = $1
	  AND status = 'pending'
	  AND scheduled_time >= $2
	ORDER BY scheduled_time ASC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, ownerID, after.UTC(), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *reminderRepository) UpdatePending(ctx context.Context, reminder *domain.Reminder) (bool, error) {
	if reminder == nil {
		return false, domain.ErrInvalidPayload
	}

	const query = `
	UPDATE reminders
	SET content = $3,
		scheduled_time = $4,
		recurring = $5,
		recurrence_pattern = $6,
		context = $7
	WHERE id = $1
	  AND owner_id = $2
	  AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query,
		reminder.ID,
		reminder.OwnerID,
		reminder.Content,
		reminder.ScheduledTime.UTC(),
		reminder.Recurring,
		nullString(reminder.RecurrencePattern),
		marshalMap(reminder.Context),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *reminderRepository) CancelPending(ctx context.Context, id, ownerID string, now time.Time) (bool, error) {
	const query = `
	UPDATE reminders
	SET status = 'cancelled', completed_at = $3
	WHERE id = $1
	  AND owner_id = $2
	  AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query, id, ownerID, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteDue is the atomic guard the whole execution path leans on. The
// status and dueness predicates live inside a single UPDATE so two workers
// racing on the same reminder can never both see rows affected.
func (r *reminderRepository) CompleteDue(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
	UPDATE reminders
	SET status = 'completed', completed_at = $2
	WHERE id = $1
	  AND status = 'pending'
	  AND scheduled_time <= $2
	`
	tag, err := r.pool.Exec(ctx, query, id, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *reminderRepository) FailPending(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `
	UPDATE reminders
	SET status = 'failed', completed_at = $2
	WHERE id = $1
	  AND status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query, id, now.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *reminderRepository) SetDispatchRef(ctx context.Context, id, ref string) error {
	const query = `UPDATE reminders SET dispatch_ref = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReminderNotFound
	}
	return nil
}

func (r *reminderRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Reminder, error) {
	const query = `
	SELECT ` + reminderColumns + `
	FROM reminders
	WHERE status = 'pending'
	  AND scheduled_time <= $1
	ORDER BY scheduled_time ASC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now.UTC(), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReminders(rows)
}

func (r *reminderRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
	DELETE FROM reminders
	WHERE status IN ('completed', 'failed', 'cancelled')
	  AND created_at < $1
	`
	tag, err := r.pool.Exec(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanReminder(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Reminder, error) {
	var rem domain.Reminder
	var (
		status      string
		pattern     *string
		dispatchRef *string
		contextRaw  []byte
		completedAt *time.Time
	)

	if err := row.Scan(
		&rem.ID,
		&rem.OwnerID,
		&rem.Content,
		&rem.ScheduledTime,
		&status,
		&rem.Recurring,
		&pattern,
		&contextRaw,
		&dispatchRef,
		&rem.CreatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, err
	}

	rem.Status = domain.Status(status)
	rem.ScheduledTime = rem.ScheduledTime.UTC()
	rem.CompletedAt = completedAt
	if pattern != nil {
		rem.RecurrencePattern = *pattern
	}
	if dispatchRef != nil {
		rem.DispatchRef = *dispatchRef
	}
	if len(contextRaw) > 0 {
		_ = json.Unmarshal(contextRaw, &rem.Context)
	}

	return &rem, nil
}

func collectReminders(rows pgx.Rows) ([]domain.Reminder, error) {
	var reminders []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	return reminders, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
