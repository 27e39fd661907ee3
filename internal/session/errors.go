package session

import "errors"

var (
	// ErrNotCapturing is returned by StopCapture when no capture is active.
	ErrNotCapturing = errors.New("not capturing")
	// ErrCaptureActive is returned by StartCapture while a capture is active.
	ErrCaptureActive = errors.New("capture already in progress")
	// ErrRecordingNotFound is returned when a recording id does not exist.
	ErrRecordingNotFound = errors.New("recording not found")
	// ErrNoTranscriber is returned when no transcription gateway is wired.
	ErrNoTranscriber = errors.New("no transcriber configured")
)
