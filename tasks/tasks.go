// Package tasks runs fire-and-forget background work. Callers enqueue a job
// and move on; the job's failure is caught and logged at the task boundary
// rather than surfacing in whichever request happened to spawn it. The
// Runner is meant to live under a suture supervisor.
package tasks

import (
	"context"
	"time"

	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
)

type job struct {
	name string
	run  func(context.Context) error
}

type Runner struct {
	jobs    chan job
	timeout time.Duration
}

func NewRunner(buffer int, timeout time.Duration) *Runner {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Runner{
		jobs:    make(chan job, buffer),
		timeout: timeout,
	}
}

// Do enqueues a job without waiting for it to run. It reports false when the
// queue is full: the job is dropped, not blocked on.
func (r *Runner) Do(name string, run func(context.Context) error) bool {
	select {
	case r.jobs <- job{name: name, run: run}:
		return true
	default:
		logging.Warn().Str("task", name).Msg("task queue full, dropping")
		metrics.Tasks.WithLabelValues("dropped").Inc()
		return false
	}
}

// Serve drains the queue one job at a time until the context is canceled.
// It implements suture.Service.
func (r *Runner) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.jobs:
			r.runJob(ctx, j)
		}
	}
}

func (r *Runner) runJob(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logging.Error().Interface("panic", p).Str("task", j.name).Msg("task panicked")
			metrics.Tasks.WithLabelValues("panicked").Inc()
		}
	}()

	if err := j.run(ctx); err != nil {
		logging.Error().Err(err).Str("task", j.name).Dur("elapsed", time.Since(start)).Msg("task failed")
		metrics.Tasks.WithLabelValues("failed").Inc()
		return
	}
	logging.Debug().Str("task", j.name).Dur("elapsed", time.Since(start)).Msg("task done")
	metrics.Tasks.WithLabelValues("ok").Inc()
}

func (r *Runner) String() string { return "task-runner" }
