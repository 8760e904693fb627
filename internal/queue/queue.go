// Package queue abstracts the delayed-task queue that carries reminder
// executions. The queue is deliberately dumb: it stores jobs with an
// absolute fire time and hands back the ones that are due. Exactly-once
// execution is not its job; that lives in the storage layer's
// conditional status transition.
package queue

import (
	"context"
	"time"
)

// Job names understood by the worker.
const (
	JobExecuteReminder = "execute_reminder"
)

// Job is a unit of delayed work. ETA is the absolute instant the job
// becomes due; delays may span days, so the queue must persist absolute
// times rather than relative delays.
type Job struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ReminderID string    `json:"reminder_id"`
	Attempt    int       `json:"attempt"`
	ETA        time.Time `json:"eta"`
}

// Queue is the delayed-job port. Enqueue returns an opaque handle
// (stored as the reminder's dispatch_ref, diagnostics only). Due claims
// and returns jobs whose ETA has passed; a job claimed by one caller is
// never returned to another.
type Queue interface {
	Enqueue(ctx context.Context, job Job) (string, error)
	Due(ctx context.Context, now time.Time, limit int) ([]Job, error)
}
