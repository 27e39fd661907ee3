package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func newFakeUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected upstream path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTranscribeSuccess(t *testing.T) {
	srv, calls := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()

		if ext := filepath.Ext(header.Filename); ext != ".webm" {
			t.Errorf("expected .webm filename for webm mime, got %q", header.Filename)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("unexpected model %q", model)
		}
		if lang := r.FormValue("language"); lang != "" {
			t.Errorf("language must not be forced, got %q", lang)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello world"})
	})

	gw := NewGateway("test-key", "", WithBaseURL(srv.URL+"/v1"))
	text, err := gw.Transcribe(context.Background(), []byte("fake-webm-bytes"), "audio/webm;codecs=opus")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", text)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestEmptyTextIsSuccess(t *testing.T) {
	srv, _ := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": ""})
	})

	gw := NewGateway("test-key", "whisper-1", WithBaseURL(srv.URL+"/v1"))
	text, err := gw.Transcribe(context.Background(), []byte("silence"), "audio/wav")
	if err != nil {
		t.Fatalf("expected silence to be a valid success, got %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestPayloadTooLargeNeverForwarded(t *testing.T) {
	srv, calls := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized payload must not reach upstream")
	})

	gw := NewGateway("test-key", "whisper-1", WithBaseURL(srv.URL+"/v1"))
	payload := make([]byte, MaxPayloadBytes+1)

	_, err := gw.Transcribe(context.Background(), payload, "audio/wav")
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestPayloadAtLimitIsForwarded(t *testing.T) {
	srv, calls := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	})

	gw := NewGateway("test-key", "whisper-1", WithBaseURL(srv.URL+"/v1"))
	payload := make([]byte, MaxPayloadBytes)

	if _, err := gw.Transcribe(context.Background(), payload, "audio/wav"); err != nil {
		t.Fatalf("expected payload at limit to pass, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestUpstreamFailureCarriesMessage(t *testing.T) {
	srv, _ := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "rate limit exceeded",
				"type":    "requests",
			},
		})
	})

	gw := NewGateway("test-key", "whisper-1", WithBaseURL(srv.URL+"/v1"))
	_, err := gw.Transcribe(context.Background(), []byte("audio"), "audio/wav")
	if err == nil {
		t.Fatal("expected upstream failure")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstream.Message != "rate limit exceeded" {
		t.Fatalf("expected verbatim upstream message, got %q", upstream.Message)
	}
	if got := ErrorMessage(err); got != "rate limit exceeded" {
		t.Fatalf("ErrorMessage mismatch: %q", got)
	}
}

func TestExtensionForMime(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"audio/webm", ".webm"},
		{"audio/webm;codecs=opus", ".webm"},
		{"AUDIO/WEBM; codecs=vp9", ".webm"},
		{"audio/ogg", ".ogg"},
		{"audio/wav", ".wav"},
		{"audio/x-wav", ".wav"},
		{"audio/mpeg", ".mp3"},
		{"audio/mp4", ".m4a"},
		{"audio/flac", ".flac"},
		{"", ".webm"},
		{"application/unknown", ".webm"},
	}

	for _, tc := range cases {
		if got := ExtensionForMime(tc.mime); got != tc.want {
			t.Errorf("ExtensionForMime(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}
