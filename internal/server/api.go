package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/voicenote-app/voicenote/internal/capture"
	"github.com/voicenote-app/voicenote/internal/session"
	"github.com/voicenote-app/voicenote/internal/transcribe"
)

var recordingIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// multipart framing overhead allowed on top of the payload ceiling
const uploadSlackBytes = 1 << 20

// Session is the session-manager surface the API drives. The manager is
// passed in explicitly; handlers hold no state of their own.
type Session interface {
	StartCapture() error
	StopCapture() (session.Recording, error)
	RetryTranscribe(ctx context.Context, id string) error
	TogglePlayback(id string) (string, error)
	PlaybackEnded(id string)
	Recordings() []session.Recording
	Recording(id string) (session.Recording, bool)
	Status() session.Status
	Draft() string
	SetDraft(text string)
}

type Transcriber interface {
	Transcribe(ctx context.Context, payload []byte, mimeType string) (string, error)
}

func registerAPIRoutes(mux *http.ServeMux, sess Session, gw Transcriber, warnings []string) {
	mux.HandleFunc("POST /api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		handleTranscribeUpload(w, r, gw)
	})

	mux.HandleFunc("POST /api/capture/start", func(w http.ResponseWriter, r *http.Request) {
		if err := sess.StartCapture(); err != nil {
			writeJSONError(w, captureErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sess.Status())
	})

	mux.HandleFunc("POST /api/capture/stop", func(w http.ResponseWriter, r *http.Request) {
		rec, err := sess.StopCapture()
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrNotCapturing) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	mux.HandleFunc("GET /api/recordings", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sess.Recordings())
	})

	mux.HandleFunc("GET /api/recordings/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		recordingID := r.PathValue("id")
		if !validRecordingID(recordingID) {
			writeJSONError(w, http.StatusForbidden, "invalid recording id")
			return
		}

		rec, ok := sess.Recording(recordingID)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "recording not found")
			return
		}

		name := rec.DownloadName()
		w.Header().Set("Content-Type", rec.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, name, rec.CreatedAt, bytes.NewReader(rec.Payload))
	})

	mux.HandleFunc("POST /api/recordings/{id}/transcribe", func(w http.ResponseWriter, r *http.Request) {
		recordingID := r.PathValue("id")
		if _, ok := sess.Recording(recordingID); !ok {
			writeJSONError(w, http.StatusNotFound, "recording not found")
			return
		}

		// Result arrives via the event feed; the call itself is
		// fire-and-forget.
		go func() { _ = sess.RetryTranscribe(context.Background(), recordingID) }()
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/recordings/{id}/playback", func(w http.ResponseWriter, r *http.Request) {
		playing, err := sess.TogglePlayback(r.PathValue("id"))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"playing_id": playing})
	})

	mux.HandleFunc("POST /api/recordings/{id}/playback/ended", func(w http.ResponseWriter, r *http.Request) {
		sess.PlaybackEnded(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		ws := warnings
		if ws == nil {
			ws = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   sess.Status(),
			"warnings": ws,
		})
	})

	mux.HandleFunc("GET /api/draft", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"draft": sess.Draft()})
	})

	mux.HandleFunc("PUT /api/draft", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Draft string `json:"draft"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid draft body")
			return
		}
		sess.SetDraft(body.Draft)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleTranscribeUpload is the standalone transcription endpoint: one
// multipart field named "audio", text back. Missing field and oversized
// payloads are rejected before any external call.
func handleTranscribeUpload(w http.ResponseWriter, r *http.Request, gw Transcriber) {
	r.Body = http.MaxBytesReader(w, r.Body, transcribe.MaxPayloadBytes+uploadSlackBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, transcribe.ErrPayloadTooLarge.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, "missing audio field")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > transcribe.MaxPayloadBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, transcribe.ErrPayloadTooLarge.Error())
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("read audio field: %v", err))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	text, err := gw.Transcribe(r.Context(), payload, mimeType)
	if err != nil {
		if errors.Is(err, transcribe.ErrPayloadTooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeJSONError(w, http.StatusBadGateway, transcribe.ErrorMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func captureErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrCaptureActive):
		return http.StatusConflict
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validRecordingID(id string) bool {
	return recordingIDPattern.MatchString(id)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
