package chat

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Result before the task has completed.
var ErrPending = errors.New("task still running")

// Task is the future handed out by the asynchronous session operations.
// It resolves exactly once, after the session state reflects the outcome.
type Task[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Resolved returns a task that has already completed.
func Resolved[T any](value T, err error) *Task[T] {
	t := newTask[T]()
	t.resolve(value, err)
	return t
}

func (t *Task[T]) resolve(value T, err error) {
	t.once.Do(func() {
		t.value = value
		t.err = err
		close(t.done)
	})
}

// Done is closed once the task has a result.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx is done. Cancelling ctx does not cancel the task.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking.
func (t *Task[T]) Result() (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	default:
		var zero T
		return zero, ErrPending
	}
}
