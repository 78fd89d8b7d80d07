package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue buffer is full")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines. Failed jobs are
// retried with a linear backoff. Every accepted job is tracked until it is
// handled, exhausts its retries or is dropped at shutdown.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	retries  sync.WaitGroup
	pending  sync.WaitGroup
	senders  sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopping bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop refuses new jobs and waits until every accepted job, including one in
// flight or waiting on a retry, has finished. When ctx ends first the workers
// are cancelled and whatever is left is dropped.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started || q.stopping {
		q.mu.Unlock()
		return
	}
	q.stopping = true
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		q.logger.Sugar().Warnw("queue stopped before draining", "queue", q.name, "pending", len(q.jobs))
	}

	q.cancel()
	q.wg.Wait()
	q.retries.Wait()
	q.senders.Wait()
	q.discard()
	<-drained
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// discard releases jobs left in the buffer once no worker or retry can touch it.
func (q *Queue) discard() {
	for {
		select {
		case job := <-q.jobs:
			q.logger.Sugar().Warnw("job dropped at shutdown", "queue", q.name, "job_id", job.ID, "type", job.Type)
			q.pending.Done()
		default:
			return
		}
	}
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	ctx, err := q.accepting()
	if err != nil {
		return err
	}
	defer q.senders.Done()
	job = stamp(job)

	select {
	case <-ctx.Done():
		q.pending.Done()
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

// TryEnqueue pushes a job without blocking.
func (q *Queue) TryEnqueue(job Job) error {
	if _, err := q.accepting(); err != nil {
		return err
	}
	defer q.senders.Done()
	select {
	case q.jobs <- stamp(job):
		return nil
	default:
		q.pending.Done()
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// accepting registers one pending job and one sender. The caller releases the
// sender when it returns and the job if it never reaches the buffer.
func (q *Queue) accepting() (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return nil, fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopping {
		return nil, fmt.Errorf("queue %s is shutting down", q.name)
	}
	q.pending.Add(1)
	q.senders.Add(1)
	return q.ctx, nil
}

func stamp(job Job) Job {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	return job
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
				continue
			}
			q.pending.Done()
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		q.pending.Done()
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay * time.Duration(j.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.logger.Sugar().Warnw("retry dropped at shutdown", "queue", q.name, "job_id", j.ID, "type", j.Type)
			q.pending.Done()
			return
		case <-timer.C:
			select {
			case q.jobs <- j:
			case <-q.ctx.Done():
				q.pending.Done()
			}
		}
	}(job)
}
