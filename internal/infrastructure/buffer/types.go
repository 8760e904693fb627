package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a notification delivery that failed and is waiting to be
// replayed. Payload is the serialized delivery exactly as it would have
// gone out.
type Item struct {
	ID         string          `json:"id"`
	ReminderID string          `json:"reminder_id"`
	Payload    json.RawMessage `json:"payload"`
	Retries    int             `json:"retries"`
	Timestamp  time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
