package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/orbeon/orbeon-forms-sub002/internal/host"
)

// ErrLoopClosed is returned when posting to a loop that stopped
var ErrLoopClosed = errors.New("event loop closed")

// Loop runs every task on a single goroutine, one at a time. Timers created
// with AfterFunc post their callback to the loop instead of running it on the
// timer goroutine.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	closed sync.Once
}

// NewLoop creates a loop; call Run to start processing
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until the context is cancelled or Close is called
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			task()
		}
	}
}

// Close stops the loop. Pending tasks are dropped.
func (l *Loop) Close() {
	l.closed.Do(func() { close(l.done) })
}

// Post queues a task
func (l *Loop) Post(task func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Do queues a task and waits for it to finish
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		task()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopClosed
	}
}

// AfterFunc runs fn on the loop once d has elapsed
func (l *Loop) AfterFunc(d time.Duration, fn func()) host.Timer {
	return time.AfterFunc(d, func() {
		_ = l.Post(fn)
	})
}
