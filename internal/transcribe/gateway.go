package transcribe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// MaxPayloadBytes is the hard ceiling for a single audio payload. Anything
// larger is rejected locally and never forwarded upstream.
const MaxPayloadBytes = 25 << 20

// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("audio payload exceeds 25 MiB limit")

// UpstreamError carries the human-readable message reported by the
// transcription provider. The message is surfaced to the user verbatim.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// Gateway forwards audio payloads to the OpenAI audio-transcriptions API.
// Each call is independent and stateless; there is no retry, no queueing
// and no caching.
type Gateway struct {
	client *openai.Client
	model  string
}

type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func NewGateway(apiKey, model string, opts ...Option) *Gateway {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if model == "" {
		model = openai.Whisper1
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		config.HTTPClient = o.httpClient
	}

	return &Gateway{client: openai.NewClientWithConfig(config), model: model}
}

// Transcribe sends the payload upstream and returns the recognized text.
// No language is forced, so the provider auto-detects it. An empty result
// is a valid success: the model detected silence.
func (g *Gateway) Transcribe(ctx context.Context, payload []byte, mimeType string) (string, error) {
	if len(payload) > MaxPayloadBytes {
		return "", ErrPayloadTooLarge
	}

	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.model,
		FilePath: "audio" + ExtensionForMime(mimeType),
		Reader:   bytes.NewReader(payload),
	})
	if err != nil {
		return "", &UpstreamError{Message: upstreamMessage(err)}
	}

	return resp.Text, nil
}

// ErrorMessage extracts the user-facing message from a Transcribe error.
func ErrorMessage(err error) string {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return err.Error()
}

func upstreamMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// ExtensionForMime maps a declared content type to the file extension the
// provider expects. Codec parameters (e.g. "audio/webm;codecs=opus") are
// stripped before matching.
func ExtensionForMime(mimeType string) string {
	base := mimeType
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = base[:idx]
	}
	base = strings.ToLower(strings.TrimSpace(base))

	switch base {
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/flac":
		return ".flac"
	default:
		return ".webm"
	}
}
