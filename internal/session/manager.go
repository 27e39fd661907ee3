package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/voicenote-app/voicenote/internal/capture"
	"github.com/voicenote-app/voicenote/internal/transcribe"
)

// Manager owns the capture device handle, the ordered in-memory recordings
// list, the draft text buffer and the transient status flags. All state is
// held by the Manager instance itself and passed explicitly to handlers;
// there is no package-level state.
type Manager struct {
	device  capture.Device
	gateway Transcriber
	hub     EventBroadcaster
	buffer  *ChunkBuffer

	encode func(pcm []byte, sampleRate int) ([]byte, string, error)

	mu         sync.Mutex
	capturing  bool
	finalizing bool
	inflight   map[string]struct{}
	lastError  string
	playingID  string
	draft      string
	recordings []*Recording
	lastID     int64
	streamDone chan struct{}
	streamErr  error
}

func NewManager(device capture.Device, gateway Transcriber, hub EventBroadcaster) *Manager {
	m := &Manager{
		device:   device,
		gateway:  gateway,
		hub:      hub,
		buffer:   NewChunkBuffer(),
		inflight: make(map[string]struct{}),
	}
	m.encode = func(pcm []byte, sampleRate int) ([]byte, string, error) {
		payload, err := capture.WAV(pcm, sampleRate)
		return payload, capture.MimeWAV, err
	}
	return m
}

// StartCapture acquires the audio input device and begins accumulating
// chunks. Any previous error is cleared on success.
func (m *Manager) StartCapture() error {
	m.mu.Lock()
	if m.capturing || m.finalizing {
		m.mu.Unlock()
		return ErrCaptureActive
	}
	// Reserve the flag before releasing the lock so a concurrent start
	// cannot pass the guard while the device is still being armed.
	m.capturing = true
	m.lastError = ""
	m.mu.Unlock()

	if err := m.device.Start(); err != nil {
		m.mu.Lock()
		m.capturing = false
		m.lastError = err.Error()
		m.mu.Unlock()
		return err
	}

	m.buffer.Reset()
	done := make(chan struct{})

	m.mu.Lock()
	m.streamDone = done
	m.streamErr = nil
	m.mu.Unlock()

	go func() {
		err := m.device.Stream(m.buffer)
		m.mu.Lock()
		m.streamErr = err
		m.mu.Unlock()
		close(done)
	}()

	if m.hub != nil {
		m.hub.BroadcastCaptureStarted()
	}
	return nil
}

// StopCapture releases the device, assembles the buffered chunks into a new
// Recording, appends it to the list and kicks off transcription. The device
// handle is released and accumulated chunks are finalized on every path,
// including device failure.
func (m *Manager) StopCapture() (Recording, error) {
	m.mu.Lock()
	if !m.capturing {
		m.mu.Unlock()
		return Recording{}, ErrNotCapturing
	}
	m.capturing = false
	m.finalizing = true
	done := m.streamDone
	m.streamDone = nil
	m.mu.Unlock()

	stopErr := m.device.Stop()
	if done != nil {
		<-done
	}

	m.mu.Lock()
	if stopErr == nil && m.streamErr != nil {
		stopErr = m.streamErr
	}
	if stopErr != nil {
		m.lastError = stopErr.Error()
	}
	m.streamErr = nil
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastCaptureStopped()
	}

	return m.finalize()
}

func (m *Manager) finalize() (Recording, error) {
	defer func() {
		m.mu.Lock()
		m.finalizing = false
		m.mu.Unlock()
	}()

	pcm := m.buffer.Flush()
	payload, mimeType, err := m.encode(pcm, m.device.SampleRate())
	if err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()
		return Recording{}, fmt.Errorf("finalize recording: %w", err)
	}

	m.mu.Lock()
	ms := time.Now().UnixMilli()
	if ms <= m.lastID {
		ms = m.lastID + 1
	}
	m.lastID = ms

	rec := &Recording{
		ID:        strconv.FormatInt(ms, 10),
		MimeType:  mimeType,
		Size:      len(payload),
		CreatedAt: time.UnixMilli(ms),
		Payload:   payload,
	}
	m.recordings = append(m.recordings, rec)
	snapshot := *rec
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastRecordingAdded(snapshot)
	}

	if m.gateway != nil {
		go func() {
			_ = m.Transcribe(context.Background(), snapshot.ID)
		}()
	}

	return snapshot, nil
}

// Transcribe sends the recording's stored payload to the transcription
// gateway. In-flight status is tracked per recording id, so overlapping
// calls for different recordings do not share state. On success the text is
// attached to the matching recording and space-joined onto the draft buffer.
func (m *Manager) Transcribe(ctx context.Context, id string) error {
	if m.gateway == nil {
		return ErrNoTranscriber
	}

	m.mu.Lock()
	rec := m.findLocked(id)
	if rec == nil {
		m.mu.Unlock()
		return ErrRecordingNotFound
	}
	payload := rec.Payload
	mimeType := rec.MimeType
	m.inflight[id] = struct{}{}
	m.lastError = ""
	m.mu.Unlock()

	text, err := m.gateway.Transcribe(ctx, payload, mimeType)

	m.mu.Lock()
	delete(m.inflight, id)
	if err != nil {
		msg := "Transcription failed: " + transcribe.ErrorMessage(err)
		m.lastError = msg
		m.mu.Unlock()

		if m.hub != nil {
			m.hub.BroadcastTranscriptFailed(id, msg)
		}
		return fmt.Errorf("transcribe recording %s: %w", id, err)
	}

	if rec := m.findLocked(id); rec != nil {
		t := text
		rec.Transcript = &t
		if text != "" {
			if m.draft == "" {
				m.draft = text
			} else {
				m.draft += " " + text
			}
		}
	}
	draft := m.draft
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastTranscriptReady(id, text, draft)
	}
	return nil
}

// RetryTranscribe re-invokes transcription for an already-finalized
// recording, reusing its stored payload. Purely user-initiated; no backoff.
func (m *Manager) RetryTranscribe(ctx context.Context, id string) error {
	return m.Transcribe(ctx, id)
}

// TogglePlayback starts playback on the given recording, stopping any other,
// or pauses it if it is already playing. Returns the id now playing, or ""
// if nothing is.
func (m *Manager) TogglePlayback(id string) (string, error) {
	m.mu.Lock()
	if m.findLocked(id) == nil {
		m.mu.Unlock()
		return "", ErrRecordingNotFound
	}
	if m.playingID == id {
		m.playingID = ""
	} else {
		m.playingID = id
	}
	playing := m.playingID
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.BroadcastPlaybackChanged(playing)
	}
	return playing, nil
}

// PlaybackEnded clears the playing marker when the given recording reached
// the end of its audio naturally.
func (m *Manager) PlaybackEnded(id string) {
	m.mu.Lock()
	ended := m.playingID == id
	if ended {
		m.playingID = ""
	}
	m.mu.Unlock()

	if ended && m.hub != nil {
		m.hub.BroadcastPlaybackChanged("")
	}
}

// Recordings returns snapshots of all recordings in completion order.
func (m *Manager) Recordings() []Recording {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Recording, 0, len(m.recordings))
	for _, rec := range m.recordings {
		out = append(out, *rec)
	}
	return out
}

// Recording returns a snapshot of the recording with the given id.
func (m *Manager) Recording(id string) (Recording, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.findLocked(id)
	if rec == nil {
		return Recording{}, false
	}
	return *rec, true
}

// Status returns a snapshot of the session flags. The transcribing flag is
// derived from the per-recording in-flight set.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Capturing:    m.capturing,
		Finalizing:   m.finalizing,
		Transcribing: len(m.inflight) > 0,
		LastError:    m.lastError,
		PlayingID:    m.playingID,
	}
}

// Draft returns the accumulated draft text.
func (m *Manager) Draft() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// SetDraft replaces the draft text with a user edit.
func (m *Manager) SetDraft(text string) {
	m.mu.Lock()
	m.draft = text
	m.mu.Unlock()
}

func (m *Manager) findLocked(id string) *Recording {
	for _, rec := range m.recordings {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}
