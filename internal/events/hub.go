// Package events fans engagement events out to connected websocket clients.
package events

import (
	"log/slog"
	"sync"

	"thoughtbox/internal/domain"
)

const subscriberBuffer = 16

// Hub keeps the set of live subscribers and broadcasts every published event
// to each of them. Publish never blocks: a subscriber that cannot keep up is
// dropped.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[chan domain.Event]struct{}
	closed bool
}

var _ domain.EventPublisher = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[chan domain.Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. Subscribers with a full
// buffer are disconnected rather than blocking the caller.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping slow event subscriber", "kind", ev.Kind)
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Close disconnects all subscribers. Publish and Subscribe become no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
