// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package progress

import (
	"log/slog"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber queue depth. A UI that falls this
// far behind is not reading at all, and gets dropped instead of blocking
// the publisher.
const subscriberBuffer = 64

// Subscriber is one attached client. Events arrive on C in publication
// order until the subscriber is dropped or unsubscribed, at which point C
// is closed.
type Subscriber struct {
	// C delivers events. Closed by the hub, never by the consumer.
	C chan Event

	mu     sync.Mutex
	filter string
}

// SetFilter restricts delivery to events for one download id. Events
// without a download id, and the connected handshake, always pass.
func (s *Subscriber) SetFilter(downloadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = downloadID
}

// wants reports whether the event passes the subscriber's filter.
func (s *Subscriber) wants(event Event) bool {
	if event.Type == EventConnected || event.DownloadID == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter == "" || s.filter == event.DownloadID
}

// Hub fans events out to the attached subscribers.
//
// # Delivery Contract
//
// Best-effort, at-most-once: a full subscriber queue drops that subscriber
// on the spot. There is no replay for late joiners; a client combines its
// subscription with an initial queue listing to get a complete view.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logger.With(slog.String("component", "progress_hub")),
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe attaches a new subscriber and delivers the connected handshake
// as its first event. Subscribing to a closed hub returns a subscriber
// whose channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.C)
		return sub
	}

	h.subscribers[sub] = struct{}{}
	sub.C <- Event{Type: EventConnected, Timestamp: time.Now().UTC()}

	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// Publish delivers the event to every interested subscriber without
// blocking. Implements [Publisher].
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for sub := range h.subscribers {
		if !sub.wants(event) {
			continue
		}

		select {
		case sub.C <- event:
		default:
			h.logger.Warn("slow_subscriber_dropped",
				slog.String("event_type", string(event.Type)),
			)
			h.remove(sub)
		}
	}
}

// Send delivers one event to a single subscriber, bypassing fan-out. Used
// for command replies like pong.
func (h *Hub) Send(sub *Subscriber, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[sub]; !ok {
		return
	}

	select {
	case sub.C <- event:
	default:
		h.remove(sub)
	}
}

// SubscriberCount reports how many subscribers are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close detaches every subscriber and rejects future publishes. Safe to
// call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for sub := range h.subscribers {
		h.remove(sub)
	}
}

// remove must be called with the lock held.
func (h *Hub) remove(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.C)
}
