package events

import (
	"sync"
	"time"
)

// Resource families shared by the cache, the views and the dashboard
const (
	Categories = "categories"
	Products   = "products"
	Orders     = "orders"
	Dashboard  = "dashboard"
)

// Invalidated announces that every cached query of Resource is stale.
// Origin is empty for events raised in this process.
type Invalidated struct {
	Resource string    `json:"resource"`
	Origin   string    `json:"origin,omitempty"`
	At       time.Time `json:"at"`
}

type Handler func(Invalidated)

// Bus is a synchronous in-process fan-out keyed by resource family
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers fn for resource; an empty resource receives every event.
// The returned func removes the subscription and is safe to call twice.
func (b *Bus) Subscribe(resource string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[resource] == nil {
		b.subs[resource] = make(map[int]Handler)
	}
	b.subs[resource][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[resource], id)
	}
}

// Publish delivers e to the catch-all subscribers first, then to the resource's own
func (b *Bus) Publish(e Invalidated) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Resource])+len(b.subs[""]))
	for _, h := range b.subs[""] {
		handlers = append(handlers, h)
	}
	if e.Resource != "" {
		for _, h := range b.subs[e.Resource] {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
