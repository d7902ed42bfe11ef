package session

import (
	"sync"

	"github.com/workbench/internal/identity"
)

type listener struct {
	id uint64
	fn identity.StateChangeFunc
}

// registry keeps listeners in registration order. Registering the same
// function twice yields two entries.
type registry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener
}

func (r *registry) add(fn identity.StateChangeFunc) identity.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.listeners = append(r.listeners, listener{id: r.nextID, fn: fn})
	return &handle{r: r, id: r.nextID}
}

func (r *registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

// snapshot returns the listeners to notify for one event
func (r *registry) snapshot() []identity.StateChangeFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	fns := make([]identity.StateChangeFunc, len(r.listeners))
	for i, l := range r.listeners {
		fns[i] = l.fn
	}
	return fns
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

type handle struct {
	r    *registry
	id   uint64
	once sync.Once
}

func (h *handle) Unsubscribe() {
	h.once.Do(func() { h.r.remove(h.id) })
}
