package realtime

import (
	"sync"

	"go.uber.org/zap"
)

type entry[F any] struct {
	id uint64
	fn F
}

// registry is an ordered list of callbacks. Dispatch runs over a copy, so
// callbacks may subscribe or unsubscribe while being called.
type registry[F any] struct {
	name string

	mu      sync.Mutex
	next    uint64
	entries []entry[F]
}

func newRegistry[F any](name string) *registry[F] {
	return &registry[F]{name: name}
}

// add appends fn and returns its unsubscribe func. Calling it twice is a no-op.
func (r *registry[F]) add(fn F) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.entries = append(r.entries, entry[F]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *registry[F]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[F]) snapshot() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]F, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.fn
	}
	return out
}

func (r *registry[F]) clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *registry[F]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// dispatch calls every subscriber of r with ev. A panicking subscriber is
// logged and counted; the rest still run.
func dispatch[E any](m *Manager, r *registry[func(E)], ev E) {
	for _, fn := range r.snapshot() {
		m.safeCall(r.name, func() { fn(ev) })
	}
}

func (m *Manager) safeCall(name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			m.metrics.CallbackPanic(name)
			m.logger.Error("subscriber callback panicked",
				zap.String("registry", name), zap.Any("panic", p))
		}
	}()
	fn()
}
