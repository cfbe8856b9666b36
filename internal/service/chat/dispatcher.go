package chat

import (
	"context"
	"sync"
)

// Dispatcher delivers closures onto the event queue of whatever drives the UI.
// Session state is only mutated after a gateway call from inside a posted closure.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(fn func())

// Post implements Dispatcher.
func (f DispatcherFunc) Post(fn func()) { f(fn) }

// Loop is a single-goroutine event queue. Closures run in posting order.
type Loop struct {
	queue   chan func()
	stopped chan struct{}
	once    sync.Once
}

// NewLoop creates a loop with the given queue capacity.
func NewLoop(size int) *Loop {
	if size < 1 {
		size = 64
	}
	return &Loop{
		queue:   make(chan func(), size),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn. Closures posted after Run has returned are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.stopped:
		return
	default:
	}

	select {
	case l.queue <- fn:
	case <-l.stopped:
	}
}

// Run drains the queue until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}
