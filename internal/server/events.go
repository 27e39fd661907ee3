package server

import (
	"time"

	"github.com/voicenote-app/voicenote/internal/session"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CaptureStartedEvent struct {
	Event
}

type CaptureStoppedEvent struct {
	Event
}

type RecordingAddedEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	MimeType    string `json:"mime_type"`
	Size        int    `json:"size"`
	CreatedAt   string `json:"created_at"`
}

type TranscriptReadyEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	Text        string `json:"text"`
	Draft       string `json:"draft"`
}

type TranscriptFailedEvent struct {
	Event
	RecordingID string `json:"recording_id"`
	Message     string `json:"message"`
}

type PlaybackChangedEvent struct {
	Event
	PlayingID string `json:"playing_id"`
}

// SessionSnapshotEvent is sent once per connection so a client that missed
// broadcasts (page load, reconnect) can rebuild its view without polling.
type SessionSnapshotEvent struct {
	Event
	Status     session.Status      `json:"status"`
	Draft      string              `json:"draft"`
	Recordings []session.Recording `json:"recordings"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
