package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventSerialization(t *testing.T) {
	events := []any{
		CaptureStartedEvent{Event: newEvent("capture_started", time.Unix(1, 0))},
		CaptureStoppedEvent{Event: newEvent("capture_stopped", time.Unix(1, 0))},
		SessionSnapshotEvent{Event: newEvent("session_snapshot", time.Unix(1, 0)), Draft: "hello"},
		RecordingAddedEvent{Event: newEvent("recording_added", time.Unix(1, 0)), RecordingID: "abc", MimeType: "audio/wav", Size: 100},
		TranscriptReadyEvent{Event: newEvent("transcript_ready", time.Unix(1, 0)), RecordingID: "abc", Text: "hello", Draft: "hello"},
		TranscriptFailedEvent{Event: newEvent("transcript_failed", time.Unix(1, 0)), RecordingID: "abc", Message: "boom"},
		PlaybackChangedEvent{Event: newEvent("playback_changed", time.Unix(1, 0)), PlayingID: "abc"},
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if payload["type"] == nil {
			t.Fatalf("missing type in payload: %s", string(b))
		}
		if payload["version"] == nil {
			t.Fatalf("missing version in payload: %s", string(b))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("missing timestamp in payload: %s", string(b))
		}
	}
}
