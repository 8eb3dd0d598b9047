// Package event carries observable pipeline events from the dispatcher and
// application to any number of subscribers (the control surface, tests).
//
// Emission is synchronous at the point of change but delivery is decoupled
// through bounded per-subscriber channels: a stalled subscriber loses
// events rather than blocking the audio thread.
package event

import (
	"log/slog"
	"sync"
)

// Type identifies an event kind.
type Type string

const (
	ModeChanged     Type = "mode_changed"
	BufferChanged   Type = "buffer_changed"
	CommandExecuted Type = "command_executed"
	StatusChanged   Type = "status_changed"
	ConfigChanged   Type = "config_changed"
	Error           Type = "error"
	Notification    Type = "notification"
)

// Event is one observable occurrence. Data is JSON-marshallable.
type Event struct {
	Type Type           `json:"event"`
	Data map[string]any `json:"data,omitempty"`
}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish delivers ev to every subscriber without blocking. Events to a
// full subscriber channel are dropped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("event: dropping event for slow subscriber", "type", ev.Type)
		}
	}
}

// Emit is shorthand for Publish with an inline data map.
func (b *Bus) Emit(t Type, data map[string]any) {
	b.Publish(Event{Type: t, Data: data})
}
