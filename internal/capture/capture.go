package capture

import (
	"errors"
	"io"
)

// Failure modes of the capture-device boundary.
var (
	// ErrPermissionDenied means the OS refused access to the audio input.
	ErrPermissionDenied = errors.New("audio input permission denied")
	// ErrDeviceUnavailable means no usable audio input device could be opened.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
)

// Device is an exclusive audio-input handle. Start acquires it, Stream
// delivers raw chunks to the sink until Stop releases it.
type Device interface {
	Start() error
	Stream(w io.Writer) error
	Stop() error
	SampleRate() int
}
