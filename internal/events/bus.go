package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type handlerEntry struct {
	id    uint64
	fn    Handler
	types map[string]bool // empty means all
}

// Bus dispatches events to function subscribers (synchronously, in
// subscription order) and channel subscribers (non-blocking, drop when full).
type Bus struct {
	mu       sync.RWMutex
	handlers []handlerEntry
	channels []chan Event
	closed   bool
	nextID   uint64

	sequence atomic.Uint64
	dropped  atomic.Uint64

	now func() time.Time
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// SetClock overrides the timestamp source. Intended for tests.
func (b *Bus) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// Subscribe registers fn for the given event types (all types if none).
// The returned function removes the subscription.
func (b *Bus) Subscribe(fn Handler, types ...string) func() {
	if fn == nil {
		return func() {}
	}
	entry := handlerEntry{fn: fn}
	if len(types) > 0 {
		entry.types = make(map[string]bool, len(types))
		for _, t := range types {
			entry.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.nextID++
	entry.id = b.nextID
	b.handlers = append(b.handlers, entry)

	id := entry.id
	return func() { b.removeHandler(id) }
}

func (b *Bus) removeHandler(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

// SubscribeChan returns a buffered channel that receives every event.
// The channel is buffered to prevent blocking emitters.
func (b *Bus) SubscribeChan(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 50
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.channels = append(b.channels, ch)
	return ch
}

// Unsubscribe removes and closes a channel subscriber.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	if ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.channels {
		if sub == ch {
			b.channels = append(b.channels[:i], b.channels[i+1:]...)
			close(sub)
			break
		}
	}
}

// Emit stamps the event with a sequence number and a timestamp (unless one
// is already set) and delivers it. It returns the stamped event.
func (b *Bus) Emit(event Event) Event {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return event
	}
	handlers := make([]handlerEntry, len(b.handlers))
	copy(handlers, b.handlers)
	now := b.now
	b.mu.RUnlock()

	event.ID = b.sequence.Add(1)
	if event.Timestamp == 0 {
		event.Timestamp = now().UnixMilli()
	}

	for _, h := range handlers {
		if len(h.types) > 0 && !h.types[event.Type] {
			continue
		}
		h.fn(event)
	}

	// Channel sends never block and must not race Unsubscribe or Close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return event
	}
	for _, ch := range b.channels {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
	return event
}

// Close removes all subscribers and closes subscriber channels. Later
// emits are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.channels {
		close(ch)
	}
	b.channels = nil
	b.handlers = nil
}

// Stats returns current event bus statistics.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		HandlerCount: len(b.handlers),
		ChannelCount: len(b.channels),
		TotalEmitted: b.sequence.Load(),
		Dropped:      b.dropped.Load(),
		Closed:       b.closed,
	}
}

// BusStats holds event bus statistics.
type BusStats struct {
	HandlerCount int
	ChannelCount int
	TotalEmitted uint64
	Dropped      uint64
	Closed       bool
}
