package server

import (
	"context"
	"sync"
	"time"
)

// PostEventType labels a post change notification.
type PostEventType string

const (
	PostEventCreated PostEventType = "created"
	PostEventUpdated PostEventType = "updated"
	PostEventDeleted PostEventType = "deleted"
)

// PostEvent is broadcast to every subscriber after a successful mutation.
type PostEvent struct {
	Type      PostEventType
	PostID    string
	Timestamp time.Time
}

// PostEventBroker fans post change events out to SSE subscribers. The post
// feed is public, so every subscriber receives every event. Slow subscribers
// drop events rather than block publishers.
type PostEventBroker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan PostEvent
	nextID      int64
	bufferSize  int
}

// NewPostEventBroker constructs a broker with a small per-subscriber buffer.
func NewPostEventBroker() *PostEventBroker {
	return &PostEventBroker{
		subscribers: make(map[int64]chan PostEvent),
		bufferSize:  16,
	}
}

// Subscribe registers a listener that is torn down when ctx ends or the
// returned cleanup runs.
func (b *PostEventBroker) Subscribe(ctx context.Context) (<-chan PostEvent, func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	stream := make(chan PostEvent, b.bufferSize)
	b.subscribers[id] = stream
	b.mu.Unlock()

	cleanup := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers the event to every current subscriber without blocking.
func (b *PostEventBroker) Publish(event PostEvent) {
	if event.Type == "" || event.PostID == "" {
		return
	}
	b.mu.RLock()
	streams := make([]chan PostEvent, 0, len(b.subscribers))
	for _, stream := range b.subscribers {
		streams = append(streams, stream)
	}
	b.mu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers, for tests.
func (b *PostEventBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
