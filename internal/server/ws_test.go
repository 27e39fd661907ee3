package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicenote-app/voicenote/internal/session"
)

func TestHubBroadcastEventShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastRecordingAdded(session.Recording{
		ID:        "1700000000123",
		MimeType:  "audio/wav",
		Size:      10000,
		CreatedAt: time.UnixMilli(1700000000123),
	})

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "recording_added" {
			t.Fatalf("expected event type recording_added, got %#v", payload["type"])
		}
		if payload["recording_id"] != "1700000000123" {
			t.Fatalf("expected recording id in payload: %s", string(msg))
		}
		if payload["version"] == nil || payload["timestamp"] == nil {
			t.Fatalf("expected versioned envelope: %s", string(msg))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub broadcast")
	}
}

func TestWSSendsSessionSnapshotOnConnect(t *testing.T) {
	transcript := "hello"
	sess := &sessionStub{
		draft: "hello",
		recordings: []session.Recording{
			{ID: "1700000000123", MimeType: "audio/wav", Size: 10, CreatedAt: time.UnixMilli(1700000000123), Transcript: &transcript},
		},
	}
	hub := NewHub()
	h, err := Handler(testStaticFS(t), hub, sess, &gatewayStub{}, nil)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read snapshot failed: %v", err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(msg, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot failed: %v", err)
	}
	if snapshot["type"] != "session_snapshot" {
		t.Fatalf("expected first message to be session_snapshot, got %s", string(msg))
	}
	if snapshot["draft"] != "hello" {
		t.Fatalf("expected draft in snapshot, got %s", string(msg))
	}
	recs, ok := snapshot["recordings"].([]any)
	if !ok || len(recs) != 1 {
		t.Fatalf("expected one recording in snapshot, got %s", string(msg))
	}

	// Broadcasts after the snapshot flow through the same connection.
	hub.BroadcastCaptureStarted()
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast failed: %v", err)
	}
	if !strings.Contains(string(msg), "capture_started") {
		t.Fatalf("expected capture_started broadcast, got %s", string(msg))
	}
}

func TestHubCaptureStoppedEventShape(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastCaptureStopped()

	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["type"] != "capture_stopped" {
			t.Fatalf("expected event type capture_stopped, got %#v", payload["type"])
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for hub broadcast")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the subscriber buffer and keep broadcasting; sends must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.BroadcastPlaybackChanged("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
}
