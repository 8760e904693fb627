// Package notify is the delivery collaborator boundary. Delivery failures
// are never allowed to affect a reminder's lifecycle: the dispatcher logs
// them and moves on, and the buffered wrapper parks failed payloads for
// later redelivery.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
)

// Delivery is the payload handed to the delivery channel when a reminder
// fires.
type Delivery struct {
	ReminderID    string    `json:"reminder_id"`
	Content       string    `json:"content"`
	ScheduledTime time.Time `json:"scheduled_time"`
}

// Notifier is what the dispatcher calls when a reminder fires.
type Notifier interface {
	Notify(ctx context.Context, reminder *domain.Reminder) error
}

// Sender pushes a single delivery to the channel. The redelivery sweep
// uses this to replay buffered payloads.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}

// DeliveryFor builds the wire payload for a fired reminder.
func DeliveryFor(reminder *domain.Reminder) Delivery {
	return Delivery{
		ReminderID:    reminder.ID,
		Content:       reminder.Content,
		ScheduledTime: reminder.ScheduledTime,
	}
}

// LogSender writes deliveries to the log. Used when no webhook is
// configured; the reminder lifecycle behaves identically either way.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, delivery Delivery) error {
	s.logger.Info("reminder notification",
		zap.String("reminder_id", delivery.ReminderID),
		zap.String("content", delivery.Content),
		zap.Time("scheduled_time", delivery.ScheduledTime),
	)
	return nil
}

var _ Sender = (*LogSender)(nil)
