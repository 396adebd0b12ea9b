package activity

import "sync"

// Kind is a class of local interaction signal.
type Kind string

const (
	KindPointer Kind = "pointer"
	KindKey     Kind = "key"
	KindScroll  Kind = "scroll"
	KindTouch   Kind = "touch"
)

// TrackedKinds is the fixed set of signals that count as user activity.
var TrackedKinds = []Kind{KindPointer, KindKey, KindScroll, KindTouch}

// Source delivers interaction and visibility signals from the host UI.
// Each registration returns a func that detaches it.
type Source interface {
	Listen(kinds []Kind, fn func(Kind)) (detach func())
	OnVisibilityChange(fn func(visible bool)) (detach func())
}

type activityListener struct {
	kinds map[Kind]bool
	fn    func(Kind)
}

// Emitter is an in-process Source. Hosts call Emit and SetVisible.
type Emitter struct {
	mu         sync.Mutex
	next       uint64
	activity   map[uint64]activityListener
	visibility map[uint64]func(bool)
}

func NewEmitter() *Emitter {
	return &Emitter{
		activity:   map[uint64]activityListener{},
		visibility: map[uint64]func(bool){},
	}
}

func (e *Emitter) Listen(kinds []Kind, fn func(Kind)) func() {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	e.mu.Lock()
	e.next++
	id := e.next
	e.activity[id] = activityListener{kinds: set, fn: fn}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.activity, id)
		e.mu.Unlock()
	}
}

func (e *Emitter) OnVisibilityChange(fn func(bool)) func() {
	e.mu.Lock()
	e.next++
	id := e.next
	e.visibility[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.visibility, id)
		e.mu.Unlock()
	}
}

// Emit notifies listeners registered for kind.
func (e *Emitter) Emit(kind Kind) {
	e.mu.Lock()
	fns := make([]func(Kind), 0, len(e.activity))
	for _, l := range e.activity {
		if l.kinds[kind] {
			fns = append(fns, l.fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// SetVisible notifies visibility listeners.
func (e *Emitter) SetVisible(visible bool) {
	e.mu.Lock()
	fns := make([]func(bool), 0, len(e.visibility))
	for _, fn := range e.visibility {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(visible)
	}
}

// ListenerCount returns the number of attached activity and visibility listeners.
func (e *Emitter) ListenerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.activity) + len(e.visibility)
}
