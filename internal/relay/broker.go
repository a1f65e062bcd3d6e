package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Event is one message on a feed. Payload is JSON.
type Event struct {
	Feed    string
	Payload string
}

// Broker fans batch events out to every connected stream client.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a client. Its channel is buffered and a client that
// falls behind loses events rather than stalling the batch.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish encodes v as JSON and sends it on feed to all clients.
func (b *Broker) Publish(feed string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("relay event not encodable", "feed", feed, "error", err)
		return
	}
	evt := Event{Feed: feed, Payload: string(data)}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
