package service

import "sync"

// Resources published on the bus.
const (
	ResourceFields  = "fields"
	ResourceEntries = "entries"
)

// Actions published on the bus.
const (
	ActionMounted   = "mounted"
	ActionReady     = "ready"
	ActionFailed    = "failed"
	ActionPersisted = "persisted"
	ActionDeleted   = "deleted"
	ActionCreated   = "created"
)

// Event is a change to a field instance or an entry.
type Event struct {
	Resource string // "fields" or "entries"
	Action   string
	ID       string // instance or entry ID
}

// EventBus is a fan-out pub/sub for field and entry events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers without blocking. A subscriber
// whose buffer is full misses the event.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to call
// more than once.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// DefaultBus is the package-level event bus.
var DefaultBus = NewEventBus()
