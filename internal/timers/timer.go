package timers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/types"
)

// State is a timer's lifecycle state. Transitions are
// Pending -> Fired (callback runs exactly once) or Pending -> Cancelled;
// both are terminal, and a fired or cancelled timer cannot be re-armed.
type State int32

const (
	Pending State = iota
	Fired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Timer is a one-shot delayed callback tracked by a Registry. Cancelling
// one timer never affects the others.
type Timer struct {
	Name string

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// StartTimer arms a one-shot timer on the registry. When delay elapses the
// timer transitions to Fired and fn runs; cancellation (individual or via
// registry shutdown) transitions to Cancelled without running fn and is
// logged distinctly from a firing.
func StartTimer(reg *Registry, name string, delay time.Duration, log *audit.Log, fn func(ctx context.Context)) *Timer {
	t := &Timer{Name: name, stop: make(chan struct{})}

	reg.Go(func(ctx context.Context) {
		select {
		case <-time.After(delay):
			if t.state.CompareAndSwap(int32(Pending), int32(Fired)) {
				fn(ctx)
				return
			}
		case <-t.stop:
		case <-ctx.Done():
		}
		if t.state.CompareAndSwap(int32(Pending), int32(Cancelled)) && log != nil {
			log.LogEvent("System", types.KindTimerCancelled, name, nil)
		}
	})
	return t
}

// Cancel stops a pending timer. No-op on fired or already-cancelled
// timers.
func (t *Timer) Cancel() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// State returns the timer's current state.
func (t *Timer) State() State {
	return State(t.state.Load())
}
