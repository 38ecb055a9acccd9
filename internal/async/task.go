// Package async runs feed work off the caller's goroutine and hands back single-shot results.
package async

import (
	"context"
	"fmt"
)

// Task is the pending result of one unit of work. It completes exactly once.
type Task[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Completed returns a task that has already finished with value and err.
func Completed[T any](value T, err error) *Task[T] {
	t := newTask[T]()
	t.complete(value, err)
	return t
}

// Done is closed once the task has a result.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx is done. Giving up on ctx does not
// cancel the work.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Ready reports whether the task has a result.
func (t *Task[T]) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task[T]) complete(value T, err error) {
	t.value = value
	t.err = err
	close(t.done)
}

// run executes fn and completes the task, turning a panic into an error.
func (t *Task[T]) run(ctx context.Context, fn func(context.Context) (T, error)) {
	var (
		value T
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			var zero T
			t.complete(zero, fmt.Errorf("task panicked: %v", r))
			return
		}
		t.complete(value, err)
	}()
	value, err = fn(ctx)
}
