package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// runMsg carries a session closure into Update.
type runMsg func()

// Dispatcher routes session completions into the bubbletea event loop.
// Post never blocks, so it is safe to call from inside Update.
type Dispatcher struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// NewDispatcher creates an idle dispatcher. Call Forward once the program exists.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{wake: make(chan struct{}, 1)}
}

// Post queues fn for the UI goroutine.
func (d *Dispatcher) Post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Forward delivers queued closures to send, in order, until ctx is done.
func (d *Dispatcher) Forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}

		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		for _, fn := range batch {
			send(runMsg(fn))
		}
	}
}
