package device

import (
	"sync"
	"sync/atomic"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// DefaultSubscriberBuffer is used when Subscribe is called with a
// non-positive buffer.
const DefaultSubscriberBuffer = 64

// Broadcaster fans emitted snapshots out to any number of subscribers.
//
// Publish never blocks. A subscriber whose buffer is full misses the
// snapshot and the drop counter goes up.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan rcp.Status
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan rcp.Status)}
}

// Subscribe registers a receiver. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan rcp.Status, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan rcp.Status, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish offers st to every subscriber. Each subscriber gets its own clone.
func (b *Broadcaster) Publish(st rcp.Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- st.Clone():
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (b *Broadcaster) Close() {
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
