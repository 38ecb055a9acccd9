package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is the result of work submitted after Shutdown.
var ErrClosed = errors.New("runner is shut down")

const queueSize = 256

// Runner executes submitted work on a fixed set of worker goroutines, in submission
// order when there is a single worker.
type Runner struct {
	jobs   chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewRunner starts workers goroutines. Fewer than one worker means one.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	workers = max(workers, 1)
	r := &Runner{
		jobs:   make(chan func(), queueSize),
		logger: logger,
	}
	r.wg.Add(workers)
	for range workers {
		go r.work()
	}
	return r
}

func (r *Runner) work() {
	defer r.wg.Done()
	for job := range r.jobs {
		job()
	}
}

// Submit queues fn on r and returns its task. The work runs with ctx's values but is not
// cancelled when ctx is; callers stop waiting through Task.Wait instead.
func Submit[T any](r *Runner, ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	workCtx := context.WithoutCancel(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		var zero T
		t.complete(zero, ErrClosed)
		return t
	}

	r.jobs <- func() { t.run(workCtx, fn) }
	return t
}

// Shutdown stops accepting work, lets queued work finish and waits for the workers.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()

	r.wg.Wait()
	if r.logger != nil {
		r.logger.Debug("async runner stopped")
	}
	return nil
}
