// Copyright (c) 2026 Komga Enhanced. All rights reserved.

package progress

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// drainOne pops the next event or fails the test.
func drainOne(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case event, ok := <-sub.C:
		require.True(t, ok, "subscriber channel closed unexpectedly")
		return event
	default:
		t.Fatal("expected a buffered event")
		return Event{}
	}
}

func TestHubConnectedHandshake(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	event := drainOne(t, sub)
	assert.Equal(t, EventConnected, event.Type)
	assert.False(t, event.Timestamp.IsZero())
}

func TestHubFanOutOrder(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	drainOne(t, sub) // connected

	hub.Publish(Event{Type: EventStarted, DownloadID: "d1"})
	hub.Publish(Event{Type: EventProgress, DownloadID: "d1", Percentage: 33})
	hub.Publish(Event{Type: EventCompleted, DownloadID: "d1", Percentage: 100})

	assert.Equal(t, EventStarted, drainOne(t, sub).Type)
	assert.Equal(t, EventProgress, drainOne(t, sub).Type)
	assert.Equal(t, EventCompleted, drainOne(t, sub).Type)
}

func TestHubFilterSuppressesOtherDownloads(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	drainOne(t, sub)

	sub.SetFilter("mine")

	hub.Publish(Event{Type: EventProgress, DownloadID: "other"})
	hub.Publish(Event{Type: EventProgress, DownloadID: "mine", Percentage: 50})
	hub.Publish(Event{Type: EventRetry}) // no download id: broadcast

	event := drainOne(t, sub)
	assert.Equal(t, "mine", event.DownloadID)
	assert.Equal(t, EventRetry, drainOne(t, sub).Type)

	select {
	case extra := <-sub.C:
		t.Fatalf("filtered event leaked through: %+v", extra)
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(testLogger())
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	defer hub.Unsubscribe(fast)
	drainOne(t, fast)

	// Never drain slow: fill its buffer past capacity.
	for i := 0; i <= subscriberBuffer; i++ {
		hub.Publish(Event{Type: EventProgress, Percentage: i})
	}

	assert.Equal(t, 1, hub.SubscriberCount(), "the slow subscriber must be dropped")

	// Its channel is closed once dropped.
	for range slow.C {
	}

	// The fast subscriber still receives the full stream.
	received := 0
	for range fast.C {
		received++
		if received == subscriberBuffer {
			break
		}
	}
	assert.Equal(t, subscriberBuffer, received)
}

func TestHubSendTargetsOneSubscriber(t *testing.T) {
	hub := NewHub(testLogger())
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)
	drainOne(t, a)
	drainOne(t, b)

	hub.Send(a, Event{Type: EventPong})

	assert.Equal(t, EventPong, drainOne(t, a).Type)
	select {
	case event := <-b.C:
		t.Fatalf("direct send leaked to another subscriber: %+v", event)
	default:
	}
}

func TestHubCloseDetachesEverything(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	drainOne(t, sub)

	hub.Close()
	hub.Close() // idempotent

	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount())

	// Publishing after close is a no-op, and late subscribers get a
	// closed channel instead of a hang.
	hub.Publish(Event{Type: EventStarted})
	late := hub.Subscribe()
	_, open = <-late.C
	assert.False(t, open)
}
