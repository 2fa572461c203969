// Package timers provides the session's tracked background tasks: the
// task registry, one-shot timers, and the crisis/clock/pressure/mole
// agents built on them.
package timers

import (
	"context"
	"sync"
	"time"
)

// Registry tracks every background task a session spawns so that shutdown
// can cancel all of them before report generation. Nothing in the session
// spawns a bare goroutine outside the registry.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a Registry whose tasks are children of parent.
func NewRegistry(parent context.Context) *Registry {
	ctx, cancel := context.WithCancel(parent)
	return &Registry{ctx: ctx, cancel: cancel}
}

// Go runs fn as a tracked task. fn must return promptly once its context
// is cancelled.
func (r *Registry) Go(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
}

// Shutdown cancels every task and waits for them to unwind, up to
// timeout. Returns true when all tasks drained. Idempotent.
func (r *Registry) Shutdown(timeout time.Duration) bool {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
