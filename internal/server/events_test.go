package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestBrokerDeliversEventsToEverySubscriber(t *testing.T) {
	broker := NewPostEventBroker()
	ctx := context.Background()

	first, cancelFirst := broker.Subscribe(ctx)
	defer cancelFirst()
	second, cancelSecond := broker.Subscribe(ctx)
	defer cancelSecond()

	broker.Publish(PostEvent{Type: PostEventCreated, PostID: "p-1", Timestamp: time.Now()})

	for _, stream := range []<-chan PostEvent{first, second} {
		select {
		case event := <-stream:
			if event.Type != PostEventCreated || event.PostID != "p-1" {
				t.Fatalf("unexpected event: %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBrokerDropsEventsForSlowSubscribers(t *testing.T) {
	broker := NewPostEventBroker()
	stream, cancel := broker.Subscribe(context.Background())
	defer cancel()

	// Overflow the buffer without reading; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			broker.Publish(PostEvent{Type: PostEventCreated, PostID: "p-1", Timestamp: time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if len(stream) == 0 {
		t.Fatal("expected buffered events")
	}
}

func TestBrokerUnsubscribesOnContextCancel(t *testing.T) {
	broker := NewPostEventBroker()
	ctx, cancel := context.WithCancel(context.Background())
	broker.Subscribe(ctx)
	if broker.SubscriberCount() != 1 {
		t.Fatalf("expected one subscriber, got %d", broker.SubscriberCount())
	}

	cancel()
	deadline := time.Now().Add(time.Second)
	for broker.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after context cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSuccessfulMutationsPublishEvents(t *testing.T) {
	testServer := newTestServer(t)
	stream, cancel := testServer.events.Subscribe(context.Background())
	defer cancel()

	token, _ := testServer.signup(t, "alice", "pw1", "Alice")
	recorder := testServer.do(t, http.MethodPost, "/posts", token, map[string]string{"title": "Hi"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("create post: status %d", recorder.Code)
	}
	created := decodePost(t, recorder)

	select {
	case event := <-stream:
		if event.Type != PostEventCreated || event.PostID != created.ID {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for created event")
	}

	// A rejected mutation publishes nothing.
	recorder = testServer.do(t, http.MethodPost, "/posts", token, map[string]string{"body": "no title"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected rejected create, got %d", recorder.Code)
	}
	select {
	case event := <-stream:
		t.Fatalf("unexpected event after rejected create: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerIgnoresEmptyEvents(t *testing.T) {
	broker := NewPostEventBroker()
	stream, cancel := broker.Subscribe(context.Background())
	defer cancel()

	broker.Publish(PostEvent{Type: "", PostID: "p-1"})
	broker.Publish(PostEvent{Type: PostEventCreated, PostID: ""})

	select {
	case event := <-stream:
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
