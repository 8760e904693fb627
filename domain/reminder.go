package domain

import "time"

// Status tracks a reminder through its lifecycle. A reminder starts as
// StatusPending and moves to exactly one of the terminal states; there is
// no transition out of a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Reminder represents a single scheduled notification. ScheduledTime is
// stored normalized to UTC; the requesting timezone only matters at parse
// time and is preserved in Context for provenance.
type Reminder struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"owner_id"`
	Content           string            `json:"content"`
	ScheduledTime     time.Time         `json:"scheduled_time"`
	Status            Status            `json:"status"`
	Recurring         bool              `json:"recurring"`
	RecurrencePattern string            `json:"recurrence_pattern,omitempty"`
	Context           map[string]string `json:"context,omitempty"`
	DispatchRef       string            `json:"dispatch_ref,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

// NextOccurrence returns a fresh pending reminder for the given instant,
// carrying over content, context and recurrence settings. Recurrence never
// mutates the fired row; each cycle is a new row so history stays auditable.
func (r *Reminder) NextOccurrence(at time.Time) *Reminder {
	next := &Reminder{
		OwnerID:           r.OwnerID,
		Content:           r.Content,
		ScheduledTime:     at.UTC(),
		Status:            StatusPending,
		Recurring:         true,
		RecurrencePattern: r.RecurrencePattern,
	}
	if len(r.Context) > 0 {
		next.Context = make(map[string]string, len(r.Context))
		for k, v := range r.Context {
			next.Context[k] = v
		}
	}
	return next
}
