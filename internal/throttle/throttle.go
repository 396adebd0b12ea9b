// Package throttle limits how often a function runs: once immediately, then
// at most one trailing call per interval.
package throttle

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Throttle wraps fn so it runs at most once per interval. The first call runs
// synchronously; calls landing inside the window collapse into one trailing
// call at the window boundary, carrying the most recent argument.
type Throttle[T any] struct {
	interval time.Duration
	fn       func(T)
	clock    clock.Clock

	mu         sync.Mutex
	ran        bool
	lastRun    time.Time
	pending    *clock.Timer
	pendingArg T
	seq        uint64
}

type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func New[T any](interval time.Duration, fn func(T), opts ...Option) *Throttle[T] {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Throttle[T]{interval: interval, fn: fn, clock: o.clock}
}

// Call invokes fn now if the window is open, otherwise schedules the single
// trailing invocation.
func (t *Throttle[T]) Call(arg T) {
	t.mu.Lock()
	now := t.clock.Now()
	if t.pending == nil && (!t.ran || now.Sub(t.lastRun) >= t.interval) {
		t.ran = true
		t.lastRun = now
		t.mu.Unlock()
		t.fn(arg)
		return
	}

	t.pendingArg = arg
	if t.pending == nil {
		t.seq++
		seq := t.seq
		wait := t.interval - now.Sub(t.lastRun)
		t.pending = t.clock.AfterFunc(wait, func() { t.fire(seq) })
	}
	t.mu.Unlock()
}

func (t *Throttle[T]) fire(seq uint64) {
	t.mu.Lock()
	if t.pending == nil || seq != t.seq {
		t.mu.Unlock()
		return
	}
	arg := t.pendingArg
	var zero T
	t.pendingArg = zero
	t.pending = nil
	t.lastRun = t.clock.Now()
	t.mu.Unlock()

	t.fn(arg)
}

// Stop drops a scheduled trailing call. It is safe to call repeatedly.
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	var zero T
	t.pendingArg = zero
}

// Pending reports whether a trailing call is scheduled.
func (t *Throttle[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}
