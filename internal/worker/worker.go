// Package worker drains the delayed-job queue. Any number of worker
// processes may poll the same queue; the queue's claim semantics keep a
// job with one poller, and the store's conditional transition keeps an
// execution with one worker even when the reconciler races it.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/remindly/backend/internal/queue"
)

// Executor runs a claimed reminder execution to completion, including the
// retry budget and failed-state bookkeeping.
type Executor interface {
	ExecuteWithRetry(ctx context.Context, reminderID string)
}

// Config tunes the polling loop and the execution fan-out.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// Pool polls the queue for jobs whose fire time has arrived and executes
// them on a bounded set of goroutines. It only moves jobs from the queue
// to the executor; it holds no reminder state of its own.
type Pool struct {
	queue    queue.Queue
	executor Executor
	clk      clock.Clock
	logger   *zap.Logger
	cfg      Config

	jobs   chan queue.Job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(q queue.Queue, executor Executor, clk clock.Clock, logger *zap.Logger, cfg Config) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:    q,
		executor: executor,
		clk:      clk,
		logger:   logger,
		cfg:      cfg,
		jobs:     make(chan queue.Job),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the execution goroutines and the polling loop.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.run()
	}

	p.wg.Add(1)
	go p.loop()

	p.logger.Info("worker pool started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Int("concurrency", p.cfg.Concurrency),
	)
}

// Stop shuts the pool down, waiting for in-flight executions up to the
// context deadline. Jobs already claimed but not finished are not lost:
// their reminders stay pending and the overdue sweep re-fires them.
func (p *Pool) Stop(ctx context.Context) {
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	defer close(p.jobs)

	for {
		select {
		case <-p.stopCh:
			return
		case <-p.clk.After(p.cfg.PollInterval):
			if err := p.poll(context.Background()); err != nil {
				// scoped to this tick; the next one simply tries again
				p.logger.Error("queue poll failed", zap.Error(err))
			}
		}
	}
}

// poll claims one batch of due jobs and hands them to the executors.
func (p *Pool) poll(ctx context.Context) error {
	due, err := p.queue.Due(ctx, p.clk.Now().UTC(), p.cfg.BatchSize)
	if err != nil {
		return errors.Wrap(err, "list due jobs")
	}

	for _, job := range due {
		select {
		case p.jobs <- job:
		case <-p.stopCh:
			return nil
		}
	}
	return nil
}

func (p *Pool) run() {
	defer p.wg.Done()

	for job := range p.jobs {
		if job.Name != queue.JobExecuteReminder {
			p.logger.Warn("skipping unknown job",
				zap.String("job_id", job.ID), zap.String("name", job.Name))
			continue
		}

		p.logger.Debug("executing due job",
			zap.String("job_id", job.ID),
			zap.String("reminder_id", job.ReminderID),
			zap.Time("eta", job.ETA),
		)
		p.executor.ExecuteWithRetry(context.Background(), job.ReminderID)
	}
}
