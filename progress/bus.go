package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Bus is an in-process fan-out of progress events to subscriber channels.
// Publication never blocks: a subscriber whose buffer is full misses the
// event, which is acceptable for human-readable progress updates.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
	logger *zap.Logger
}

// NewBus creates a bus whose subscribers each get a buffer of the given
// size (minimum 1).
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
		logger: logger.With(zap.String("component", "progress_bus")),
	}
}

// Publish delivers ev to every live subscriber, dropping it for slow ones.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("subscriber lagging, event dropped",
				zap.Int("subscriber", id), zap.String("event", ev.Name))
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release the subscription; it closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
