package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/remindly/backend/domain"
	"github.com/remindly/backend/internal/infrastructure/buffer"
)

// BufferedNotifier sends through the underlying Sender and parks failed
// payloads in the bolt buffer for the redelivery sweep. The send error is
// still returned so callers log it, but the reminder itself is unaffected.
type BufferedNotifier struct {
	sender Sender
	store  *buffer.Store
	logger *zap.Logger
}

func NewBufferedNotifier(sender Sender, store *buffer.Store, logger *zap.Logger) *BufferedNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BufferedNotifier{
		sender: sender,
		store:  store,
		logger: logger,
	}
}

func (n *BufferedNotifier) Notify(ctx context.Context, reminder *domain.Reminder) error {
	delivery := DeliveryFor(reminder)
	err := n.sender.Send(ctx, delivery)
	if err == nil {
		return nil
	}

	if n.store != nil {
		payload, merr := json.Marshal(delivery)
		if merr == nil {
			if berr := n.store.Enqueue(buffer.Item{
				ReminderID: delivery.ReminderID,
				Payload:    payload,
			}); berr != nil {
				n.logger.Error("failed to buffer notification",
					zap.String("reminder_id", delivery.ReminderID), zap.Error(berr))
			} else {
				n.logger.Warn("notification buffered for redelivery",
					zap.String("reminder_id", delivery.ReminderID))
			}
		}
	}
	return err
}

var _ Notifier = (*BufferedNotifier)(nil)
