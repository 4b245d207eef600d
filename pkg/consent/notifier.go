package consent

import (
	"sync"

	"github.com/umputun/consentd/pkg/domain"
)

// Publisher receives consent change events
type Publisher interface {
	Publish(e domain.Event)
}

// PublisherFunc is an adapter to allow ordinary functions as Publisher
type PublisherFunc func(e domain.Event)

// Publish calls f(e)
func (f PublisherFunc) Publish(e domain.Event) { f(e) }

// Publishers fans an event out to several publishers, nil entries are skipped
type Publishers []Publisher

// Publish sends the event to every publisher in order
func (ps Publishers) Publish(e domain.Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(e)
		}
	}
}

// Hub is an in-process publish/subscribe point for consentChanged events.
// Listeners are called synchronously in subscription order.
type Hub struct {
	mu        sync.RWMutex
	listeners []hubListener
	nextID    int
}

type hubListener struct {
	id int
	fn func(domain.Event)
}

// NewHub makes a hub without listeners
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a listener and returns the function removing it
func (h *Hub) Subscribe(fn func(domain.Event)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, hubListener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, l := range h.listeners {
				if l.id == id {
					h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers the event to all current listeners
func (h *Hub) Publish(e domain.Event) {
	h.mu.RLock()
	listeners := make([]hubListener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	for _, l := range listeners {
		l.fn(e)
	}
}

// Len returns the number of subscribed listeners
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
