package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/voicenote-app/voicenote/internal/session"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastCaptureStarted() {
	h.broadcastEvent(CaptureStartedEvent{
		Event: newEvent("capture_started", time.Now().UTC()),
	})
}

func (h *Hub) BroadcastCaptureStopped() {
	h.broadcastEvent(CaptureStoppedEvent{
		Event: newEvent("capture_stopped", time.Now().UTC()),
	})
}

func (h *Hub) BroadcastRecordingAdded(rec session.Recording) {
	h.broadcastEvent(RecordingAddedEvent{
		Event:       newEvent("recording_added", rec.CreatedAt),
		RecordingID: rec.ID,
		MimeType:    rec.MimeType,
		Size:        rec.Size,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *Hub) BroadcastTranscriptReady(recordingID, text, draft string) {
	h.broadcastEvent(TranscriptReadyEvent{
		Event:       newEvent("transcript_ready", time.Now().UTC()),
		RecordingID: recordingID,
		Text:        text,
		Draft:       draft,
	})
}

func (h *Hub) BroadcastTranscriptFailed(recordingID, message string) {
	h.broadcastEvent(TranscriptFailedEvent{
		Event:       newEvent("transcript_failed", time.Now().UTC()),
		RecordingID: recordingID,
		Message:     message,
	})
}

func (h *Hub) BroadcastPlaybackChanged(playingID string) {
	h.broadcastEvent(PlaybackChangedEvent{
		Event:     newEvent("playback_changed", time.Now().UTC()),
		PlayingID: playingID,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
