package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 2, BufferSize: 8})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job", Type: "noop"}))
	}
	q.Stop(context.Background())
	assert.EqualValues(t, 5, handled.Load())
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	q.Stop(context.Background())
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "x"}))
	assert.Error(t, q.TryEnqueue(Job{ID: "x"}))

	q.Start(context.Background())
	q.Stop(context.Background())
	assert.Error(t, q.TryEnqueue(Job{ID: "x"}))
}

func TestQueueTryEnqueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))
	err := q.TryEnqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	q.Stop(context.Background())
}

func TestQueueStopWaitsForInFlightJob(t *testing.T) {
	var delivered, cancelled atomic.Int32
	started := make(chan struct{})
	q := NewQueue("inflight", func(ctx context.Context, job Job) error {
		close(started)
		select {
		case <-time.After(100 * time.Millisecond):
			delivered.Add(1)
			return nil
		case <-ctx.Done():
			cancelled.Add(1)
			return ctx.Err()
		}
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "slow"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Stop(ctx)

	assert.EqualValues(t, 1, delivered.Load())
	assert.EqualValues(t, 0, cancelled.Load())
}

func TestQueueStopDeliversBufferedJobsAfterParentCancel(t *testing.T) {
	var handled atomic.Int32
	release := make(chan struct{})
	q := NewQueue("detached", func(ctx context.Context, job Job) error {
		<-release
		handled.Add(1)
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4})

	parent, cancelParent := context.WithCancel(context.Background())
	q.Start(context.WithoutCancel(parent))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "event"}))
	}
	cancelParent()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Stop(ctx)
	assert.EqualValues(t, 3, handled.Load())
}

func TestQueueStopGivesUpAtDeadline(t *testing.T) {
	q := NewQueue("stuck", func(ctx context.Context, job Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 5, RetryDelay: time.Hour})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "blocked"}))
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		q.Stop(ctx)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after its deadline")
	}
	assert.Empty(t, q.jobs)
}
