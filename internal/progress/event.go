// Copyright (c) 2026 Komga Enhanced. All rights reserved.

/*
Package progress is the in-process publish/subscribe channel for download
lifecycle events.

The executor publishes status transitions and progress samples; connected
clients receive them over a WebSocket. Delivery is best-effort by design:
a subscriber that cannot keep up is dropped rather than allowed to
backpressure the download loop. Within one subscriber, events arrive in
publication order; across subscribers no ordering is promised.
*/
package progress

import "time"

// EventType enumerates the lifecycle events a subscriber can observe.
type EventType string

const (
	// EventConnected is sent to a subscriber immediately after it attaches.
	EventConnected EventType = "connected"
	// EventStarted marks the transition of an entry into DOWNLOADING.
	EventStarted EventType = "started"
	// EventProgress carries a progress sample for a running entry.
	EventProgress EventType = "progress"
	// EventCompleted is the success terminal for one attempt.
	EventCompleted EventType = "completed"
	// EventFailed is the failure terminal for one attempt.
	EventFailed EventType = "failed"
	// EventCancelled is the terminal for a user-cancelled attempt.
	EventCancelled EventType = "cancelled"
	// EventError reports an uncaught executor failure.
	EventError EventType = "error"
	// EventRetry announces that a failed entry was flipped back to PENDING.
	EventRetry EventType = "retry"
	// EventPong answers a subscriber's ping command.
	EventPong EventType = "pong"
)

// Terminal reports whether the event ends one download attempt.
func (t EventType) Terminal() bool {
	switch t {
	case EventCompleted, EventFailed, EventCancelled, EventError:
		return true
	}
	return false
}

// Event is the wire schema pushed to subscribers. All fields except Type
// and Timestamp are optional and omitted when empty.
type Event struct {
	Type              EventType `json:"type"`
	DownloadID        string    `json:"downloadId,omitempty"`
	Title             string    `json:"title,omitempty"`
	SourceURL         string    `json:"sourceUrl,omitempty"`
	Status            string    `json:"status,omitempty"`
	CurrentChapter    float64   `json:"currentChapter,omitempty"`
	TotalChapters     int       `json:"totalChapters,omitempty"`
	CompletedChapters int       `json:"completedChapters,omitempty"`
	FilesDownloaded   int       `json:"filesDownloaded,omitempty"`
	Percentage        int       `json:"percentage,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	RetryAttempt      int       `json:"retryAttempt,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Publisher is the narrow interface the executor and scheduler publish
// through. It exists so those packages never import the hub directly.
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards every event. Used where progress reporting is
// genuinely optional, such as one-shot CLI invocations and tests.
type NopPublisher struct{}

// Publish implements [Publisher] by doing nothing.
func (NopPublisher) Publish(Event) {}
