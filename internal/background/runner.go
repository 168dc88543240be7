// Package background runs best-effort side effects off the request path.
package background

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/hearth/internal/metrics"
)

type Task func(ctx context.Context) error

// Runner executes tasks at most once each with bounded concurrency. A task
// that fails, panics or times out is logged and counted, never retried.
// Tasks submitted while the runner is saturated or closed are dropped and
// logged.
type Runner struct {
	group   errgroup.Group
	timeout time.Duration
	logger  *slog.Logger

	// mu orders submissions against Close so no TryGo lands after Wait
	// has started.
	mu     sync.RWMutex
	closed bool
}

func NewRunner(limit int, timeout time.Duration, logger *slog.Logger) *Runner {
	r := &Runner{timeout: timeout, logger: logger}
	r.group.SetLimit(limit)
	return r
}

// Go schedules fn. The task context keeps ctx's values but not its
// cancellation, so work outlives the request that spawned it. It reports
// whether the task was accepted.
func (r *Runner) Go(ctx context.Context, name string, fn Task) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("background task dropped, runner closed", "task", name)
		metrics.RecordBackgroundTask(name, "dropped")
		return false
	}

	taskCtx := context.WithoutCancel(ctx)
	ok := r.group.TryGo(func() error {
		r.run(taskCtx, name, fn)
		return nil
	})
	if !ok {
		r.logger.Warn("background task dropped, runner saturated", "task", name)
		metrics.RecordBackgroundTask(name, "dropped")
	}
	return ok
}

func (r *Runner) run(ctx context.Context, name string, fn Task) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeCall(ctx, fn)
	if err != nil {
		r.logger.Error("background task failed", "task", name, "error", err, "duration", time.Since(start))
		metrics.RecordBackgroundTask(name, "error")
		return
	}
	metrics.RecordBackgroundTask(name, "ok")
}

func safeCall(ctx context.Context, fn Task) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v\n%s", v, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Close stops accepting tasks and waits for running ones to finish or ctx
// to expire.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every accepted task has finished. Callers must not
// submit concurrently unless the runner is closed.
func (r *Runner) Wait() {
	r.group.Wait()
}
