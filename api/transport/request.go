package transport

// FromTextRequest carries a natural-language reminder request.
type FromTextRequest struct {
	Text     string `json:"text"`
	Timezone string `json:"timezone"`
}

// ReminderRequest carries an explicit reminder with a structured time.
type ReminderRequest struct {
	Content           string            `json:"content"`
	ScheduledTime     string            `json:"scheduled_time"`
	Recurring         bool              `json:"recurring"`
	RecurrencePattern string            `json:"recurrence_pattern"`
	Context           map[string]string `json:"context"`
}

// ReminderUpdateRequest carries a partial update; absent fields stay unchanged.
type ReminderUpdateRequest struct {
	Content           *string `json:"content"`
	ScheduledTime     *string `json:"scheduled_time"`
	Recurring         *bool   `json:"recurring"`
	RecurrencePattern *string `json:"recurrence_pattern"`
}
