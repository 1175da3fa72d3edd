package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcheck-live/soundcheck/tasks"
)

func start(t *testing.T, r *tasks.Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestRunsQueuedJobs(t *testing.T) {
	r := tasks.NewRunner(4, time.Second)
	start(t, r)

	ran := make(chan string, 2)
	require.True(t, r.Do("first", func(context.Context) error {
		ran <- "first"
		return nil
	}))
	require.True(t, r.Do("second", func(context.Context) error {
		ran <- "second"
		return nil
	}))

	assert.Equal(t, "first", <-ran)
	assert.Equal(t, "second", <-ran)
}

func TestFailureDoesNotStopTheQueue(t *testing.T) {
	r := tasks.NewRunner(4, time.Second)
	start(t, r)

	ran := make(chan struct{})
	r.Do("broken", func(context.Context) error { return errors.New("boom") })
	r.Do("panicky", func(context.Context) error { panic("boom") })
	r.Do("fine", func(context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job after failures never ran")
	}
}

func TestFullQueueDropsInsteadOfBlocking(t *testing.T) {
	// No Serve running, so nothing drains the queue.
	r := tasks.NewRunner(1, time.Second)

	require.True(t, r.Do("fits", func(context.Context) error { return nil }))
	assert.False(t, r.Do("dropped", func(context.Context) error { return nil }))
}

func TestJobContextHonorsTimeout(t *testing.T) {
	r := tasks.NewRunner(1, 10*time.Millisecond)
	start(t, r)

	errs := make(chan error, 1)
	r.Do("slow", func(ctx context.Context) error {
		<-ctx.Done()
		errs <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("job context never expired")
	}
}
