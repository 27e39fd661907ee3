package session

import (
	"context"
	"fmt"
	"time"

	"github.com/voicenote-app/voicenote/internal/transcribe"
)

// Recording is an immutable captured-audio entity. The only mutation after
// finalization is the one-shot attachment of its transcript.
type Recording struct {
	ID         string    `json:"id"`
	MimeType   string    `json:"mime_type"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	Transcript *string   `json:"transcript,omitempty"`

	Payload []byte `json:"-"`
}

// DownloadName is the deterministic export filename, derived from the
// creation timestamp.
func (r Recording) DownloadName() string {
	return fmt.Sprintf("recording-%d%s", r.CreatedAt.UnixMilli(), transcribe.ExtensionForMime(r.MimeType))
}

// Status is a snapshot of the session's transient flags.
type Status struct {
	Capturing    bool   `json:"capturing"`
	Finalizing   bool   `json:"finalizing"`
	Transcribing bool   `json:"transcribing"`
	LastError    string `json:"last_error,omitempty"`
	PlayingID    string `json:"playing_id,omitempty"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, payload []byte, mimeType string) (string, error)
}

type EventBroadcaster interface {
	BroadcastCaptureStarted()
	BroadcastCaptureStopped()
	BroadcastRecordingAdded(rec Recording)
	BroadcastTranscriptReady(recordingID, text, draft string)
	BroadcastTranscriptFailed(recordingID, message string)
	BroadcastPlaybackChanged(playingID string)
}
