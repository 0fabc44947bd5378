// Package schedule runs deferred callbacks that can be cancelled or waited on
// as a group.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs f once after d has elapsed. The context passed to f is
// cancelled when the scheduler shuts down, including while f is running.
type Scheduler interface {
	AfterFunc(d time.Duration, f func(ctx context.Context))
}

// Timers is a Scheduler backed by time.AfterFunc that tracks pending
// callbacks so shutdown can cancel or drain them.
type Timers struct {
	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	wg      sync.WaitGroup
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTimers returns an empty, running scheduler.
func NewTimers() *Timers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Timers{
		pending: make(map[*time.Timer]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AfterFunc schedules f. Calls made after Stop are dropped.
func (t *Timers) AfterFunc(d time.Duration, f func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.wg.Add(1)
	var timer *time.Timer
	// The callback takes t.mu before reading timer, and t.mu is held here
	// until timer is assigned.
	timer = time.AfterFunc(d, func() {
		defer t.wg.Done()
		t.mu.Lock()
		delete(t.pending, timer)
		t.mu.Unlock()
		f(t.ctx)
	})
	t.pending[timer] = struct{}{}
}

// Pending reports how many callbacks have not started yet.
func (t *Timers) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels callbacks that have not started, cancels the context of those
// already running and rejects new ones. It returns the number of callbacks
// that never started.
func (t *Timers) Stop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancel()

	cancelled := 0
	for timer := range t.pending {
		if timer.Stop() {
			delete(t.pending, timer)
			t.wg.Done()
			cancelled++
		}
	}
	return cancelled
}

// Wait blocks until every scheduled callback has either run or been
// cancelled.
func (t *Timers) Wait() {
	t.wg.Wait()
}

// WaitContext is Wait bounded by ctx. When ctx ends first the scheduler is
// stopped and WaitContext returns ctx.Err() once running callbacks have
// returned.
func (t *Timers) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		<-done
		return ctx.Err()
	}
}
