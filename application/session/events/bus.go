package events

import (
	"sync"

	"avb/application/logging"
	"avb/domain/session"
)

// Publisher receives session lifecycle events.
type Publisher interface {
	Publish(event session.Event)
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan session.Event
	nextID      uint64
	logger      logging.Logger
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subscribers: make(map[uint64]chan session.Event),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns its channel and an unsubscribe
// func that closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan session.Event, func()) {
	ch := make(chan session.Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(event session.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Printf("subscriber %d is lagging, dropped %s", id, event.Name())
		}
	}
}
