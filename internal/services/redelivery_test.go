package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/remindly/backend/internal/infrastructure/buffer"
	"github.com/remindly/backend/internal/notify"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notify.Delivery
	err  error
}

func (s *recordingSender) Send(_ context.Context, d notify.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, d)
	return nil
}

func openStore(t *testing.T) *buffer.Store {
	t.Helper()
	store, err := buffer.Open(filepath.Join(t.TempDir(), "notify.db"), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func bufferDelivery(t *testing.T, store *buffer.Store, d notify.Delivery) {
	t.Helper()
	payload, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.Enqueue(buffer.Item{ReminderID: d.ReminderID, Payload: payload}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

func TestDrainReplaysBufferedNotifications(t *testing.T) {
	store := openStore(t)
	sender := &recordingSender{}
	rd := NewRedelivery(store, sender, zap.NewNop(), RedeliveryConfig{})

	bufferDelivery(t, store, notify.Delivery{
		ReminderID:    "r1",
		Content:       "take medicine",
		ScheduledTime: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	})

	if err := rd.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0].ReminderID != "r1" {
		t.Fatalf("sent = %+v, want one delivery for r1", sender.sent)
	}
	if size, _ := store.Size(); size != 0 {
		t.Errorf("buffer size = %d after successful drain, want 0", size)
	}
}

func TestDrainDropsAfterMaxRetries(t *testing.T) {
	store := openStore(t)
	sender := &recordingSender{err: errors.New("still down")}
	rd := NewRedelivery(store, sender, zap.NewNop(), RedeliveryConfig{MaxRetries: 2})

	bufferDelivery(t, store, notify.Delivery{ReminderID: "r1", Content: "x"})

	for i := 0; i < 3; i++ {
		if err := rd.Drain(context.Background()); err != nil {
			t.Fatalf("Drain: %v", err)
		}
	}

	if size, _ := store.Size(); size != 0 {
		t.Errorf("buffer size = %d, want 0 after budget exhausted", size)
	}
}
