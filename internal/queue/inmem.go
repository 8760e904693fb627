package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemQueue is a mutex-guarded Queue used by tests and single-process
// setups. Claim semantics match the Redis implementation: a job returned
// by Due is gone from the queue.
type InMemQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func NewInMemQueue() *InMemQueue {
	return &InMemQueue{}
}

func (q *InMemQueue) Enqueue(_ context.Context, job Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.ETA = job.ETA.UTC()
	q.jobs = append(q.jobs, job)
	return job.ID, nil
}

func (q *InMemQueue) Due(_ context.Context, now time.Time, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var due []Job
	var rest []Job
	for _, job := range q.jobs {
		if len(due) < limit && !job.ETA.After(now) {
			due = append(due, job)
			continue
		}
		rest = append(rest, job)
	}
	q.jobs = rest
	return due, nil
}

// Len reports the number of jobs still waiting.
func (q *InMemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

var _ Queue = (*InMemQueue)(nil)
