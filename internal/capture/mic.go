package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const defaultFramesPerBuffer = 1024

// Mic is a PortAudio-backed capture device. The stream is opened on Start
// and closed on Stop, so the hardware handle is held only while capturing.
type Mic struct {
	rates           []int
	framesPerBuffer int

	mu         sync.Mutex
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
	stopped    bool
	reading    bool
}

// NewMic builds a mic that will try the given sample rates in order when
// opening the device. The first rate is used as the reported default.
func NewMic(rates []int, framesPerBuffer int) *Mic {
	if len(rates) == 0 {
		rates = []int{16000}
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}
	return &Mic{rates: rates, framesPerBuffer: framesPerBuffer, sampleRate: rates[0]}
}

// Start opens and starts a capture stream, trying each candidate sample rate
// until one succeeds. PortAudio must have been initialized by the caller.
func (m *Mic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return fmt.Errorf("%w: already capturing", ErrDeviceUnavailable)
	}

	var lastErr error
	for _, rate := range m.rates {
		buf := make([]int16, m.framesPerBuffer)
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(rate), m.framesPerBuffer, buf)
		if err != nil {
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			_ = stream.Close()
			lastErr = err
			continue
		}

		m.stream = stream
		m.buf = buf
		m.sampleRate = rate
		m.stopped = false
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no sample rate candidates")
	}
	return classify(lastErr)
}

// Stream reads from the mic and writes PCM16-LE chunks to w until Stop is
// called. A read failure after Stop is the normal shutdown path and is not
// reported as an error.
func (m *Mic) Stream(w io.Writer) error {
	m.mu.Lock()
	stream := m.stream
	buf := m.buf
	if stream != nil {
		m.reading = true
	}
	m.mu.Unlock()

	if stream == nil {
		return nil
	}

	// The reader owns the close: the stream must not be freed while a
	// Read call is still unwinding, so release happens here after the
	// loop exits, never in Stop.
	defer func() {
		m.mu.Lock()
		if m.stream == stream {
			m.stream = nil
			m.buf = nil
		}
		m.reading = false
		m.mu.Unlock()
		_ = stream.Close()
	}()

	var out bytes.Buffer
	out.Grow(len(buf) * 2)
	for {
		if m.isStopped() {
			return nil
		}

		if err := stream.Read(); err != nil {
			if m.isStopped() {
				return nil
			}
			return classify(err)
		}

		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
}

// Stop ends the capture. Abort unblocks a reader stuck in Read; the reader
// then closes the stream on its way out of Stream. The stream is only closed
// here when no reader ever took it. Safe to call when not capturing.
func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.stream == nil {
		return nil
	}

	err := m.stream.Abort()
	if !m.reading {
		stream := m.stream
		m.stream = nil
		m.buf = nil
		if cerr := stream.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

// SampleRate reports the rate of the most recently opened stream.
func (m *Mic) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

func (m *Mic) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
