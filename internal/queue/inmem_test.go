package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemQueueDueClaimsJobs(t *testing.T) {
	q := NewInMemQueue()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	if _, err := q.Enqueue(ctx, Job{Name: JobExecuteReminder, ReminderID: "a", ETA: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, Job{Name: JobExecuteReminder, ReminderID: "b", ETA: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	due, err := q.Due(ctx, now, 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(due) != 1 || due[0].ReminderID != "a" {
		t.Fatalf("due = %+v, want only reminder a", due)
	}

	// Claimed jobs are gone; the future job stays.
	again, err := q.Due(ctx, now, 10)
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Due returned %d jobs, want 0", len(again))
	}
	if q.Len() != 1 {
		t.Errorf("Len = %d, want 1", q.Len())
	}
}

func TestInMemQueueEnqueueAssignsID(t *testing.T) {
	q := NewInMemQueue()
	ref, err := q.Enqueue(context.Background(), Job{Name: JobExecuteReminder, ReminderID: "a"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if ref == "" {
		t.Error("Enqueue returned empty handle")
	}
}
