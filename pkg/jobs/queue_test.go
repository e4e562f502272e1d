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
	}, QueueConfig{Workers: 2, BufferSize: 4})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "email"}))
	require.NoError(t, q.Enqueue(Job{ID: "job-2", Type: "email"}))

	assert.Eventually(t, func() bool {
		return handled.Load() == 2
	}, time.Second, 10*time.Millisecond)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})

	err := q.Enqueue(Job{ID: "job-1"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	q.Start(context.Background())
	q.Stop()

	err := q.Enqueue(Job{ID: "job-1"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestQueueDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	// First job occupies the worker, second fills the buffer. With a
	// blocked worker the timing is deterministic from here.
	require.NoError(t, q.Enqueue(Job{ID: "busy"}))
	assert.Eventually(t, func() bool {
		return q.Enqueue(Job{ID: "buffered"}) == nil
	}, time.Second, 5*time.Millisecond)

	err := q.Enqueue(Job{ID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRetriesWithBackoff(t *testing.T) {
	var attempts atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 5, RetryDelay: time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky", Type: "webhook"}))

	assert.Eventually(t, func() bool {
		return attempts.Load() == 3
	}, time.Second, 10*time.Millisecond)
}

func TestQueueAbandonsAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts.Add(1)
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: time.Millisecond})

	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "doomed"}))

	// Initial attempt plus two retries, then the job is dropped.
	assert.Eventually(t, func() bool {
		return attempts.Load() == 3
	}, time.Second, 10*time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(3), attempts.Load())
}
