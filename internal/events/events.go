package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives every published status event by name: "online",
// "offline", "queued", "synced".
type Listener func(event string, data any)

// Bus fans status events out to registered listeners. Listener panics are
// recovered and logged so one misbehaving callback cannot starve the rest.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
	logger    *zerolog.Logger
}

func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{listeners: make(map[int]Listener), logger: logger}
}

// Subscribe registers a listener and returns its unregistration handle.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}
}

// Publish notifies every listener synchronously in registration order,
// isolating failures.
func (b *Bus) Publish(event string, data any) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.invoke(fn, event, data)
	}
}

func (b *Bus) invoke(fn Listener, event string, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("event", event).Msg("status listener panicked")
		}
	}()
	fn(event, data)
}
