// Package subscription demultiplexes received events to the handlers that
// registered for their kind, independent of the transport that delivered
// them.
package subscription

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/darkden-lab/orderflow/internal/events"
)

// Handler reacts to one event. A returned error or a panic is isolated to
// the handler that produced it.
type Handler func(ev events.Event) error

type entry struct {
	id uint64
	h  Handler
}

// Registry maps event kinds to handlers. It is safe for concurrent use and
// handlers may subscribe or unsubscribe from inside a dispatch.
type Registry struct {
	mu      sync.RWMutex
	buckets map[events.Kind][]entry
	next    uint64
}

func NewRegistry() *Registry {
	return &Registry{buckets: make(map[events.Kind][]entry)}
}

// Subscribe registers h for kind. The returned function removes exactly this
// registration and is safe to call more than once. When the last handler of
// a kind is removed its bucket is dropped.
func (r *Registry) Subscribe(kind events.Kind, h Handler) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.buckets[kind] = append(r.buckets[kind], entry{id: id, h: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(kind, id) })
	}
}

func (r *Registry) remove(kind events.Kind, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.buckets[kind]
	for i, e := range bucket {
		if e.id != id {
			continue
		}
		if len(bucket) == 1 {
			delete(r.buckets, kind)
			return
		}
		// Copy so a dispatch iterating the old slice is unaffected.
		next := make([]entry, 0, len(bucket)-1)
		next = append(next, bucket[:i]...)
		r.buckets[kind] = append(next, bucket[i+1:]...)
		return
	}
}

// On registers a typed handler for the kind of T.
func On[T events.Payload](r *Registry, fn func(T) error) func() {
	var zero T
	return r.Subscribe(zero.Kind(), func(ev events.Event) error {
		p, ok := ev.Data.(T)
		if !ok {
			return fmt.Errorf("payload %T is not %T", ev.Data, zero)
		}
		return fn(p)
	})
}

// Dispatch invokes every handler registered for ev.Kind in registration
// order. Every handler runs even when an earlier one fails; the failures
// are logged and returned joined. The connected handshake is never
// dispatched.
func (r *Registry) Dispatch(ev events.Event) error {
	if ev.Kind == events.KindConnected {
		return nil
	}

	r.mu.RLock()
	bucket := r.buckets[ev.Kind]
	r.mu.RUnlock()

	var errs []error
	for _, e := range bucket {
		if err := invoke(e.h, ev); err != nil {
			log.Printf("subscription: %s handler %d failed: %v", ev.Kind, e.id, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(h Handler, ev events.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return h(ev)
}

// Len returns the number of handlers registered for kind.
func (r *Registry) Len(kind events.Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets[kind])
}

// Kinds returns the number of kinds with at least one handler.
func (r *Registry) Kinds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}
