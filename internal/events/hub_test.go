package events

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"thoughtbox/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHub_BroadcastsToAllSubscribers(t *testing.T) {
	hub := NewHub(discardLogger())
	defer hub.Close()

	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Publish(domain.Event{Kind: "post.liked", ActorID: "u1", PostID: "p1", Count: 1})

	for name, ch := range map[string]<-chan domain.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Kind != "post.liked" || ev.PostID != "p1" {
				t.Fatalf("%s got %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s never received the event", name)
		}
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub(discardLogger())
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	cancel()
	cancel() // idempotent

	hub.Publish(domain.Event{Kind: "post.liked"})

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(discardLogger())
	defer hub.Close()

	ch, cancel := hub.Subscribe()
	defer cancel()

	// Overfill the buffer without draining.
	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish(domain.Event{Kind: "comment.added"})
	}

	n := 0
	for range ch {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("received %d events before drop, want %d", n, subscriberBuffer)
	}
}

func TestHandler_StreamsEventsOverWebsocket(t *testing.T) {
	hub := NewHub(discardLogger())
	defer hub.Close()

	srv := httptest.NewServer(Handler(hub, discardLogger()))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Subscription races the dial; retry until the client is registered.
	deadline := time.Now().Add(2 * time.Second)
	done := make(chan wireEvent, 1)
	go func() {
		var ev wireEvent
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if json.Unmarshal(msg, &ev) == nil {
			done <- ev
		}
	}()

	for time.Now().Before(deadline) {
		hub.Publish(domain.Event{Kind: "user.followed", ActorID: "u1", TargetID: "u2", Count: 3, At: time.Now().UTC()})
		select {
		case ev := <-done:
			if ev.Kind != "user.followed" || ev.TargetID != "u2" || ev.Count != 3 {
				t.Fatalf("got %+v", ev)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("never received event over websocket")
}
