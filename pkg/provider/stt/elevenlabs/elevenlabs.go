// Package elevenlabs implements stt.Recognizer backed by the ElevenLabs
// speech-to-text API (Scribe).
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	// defaultEndpoint is the ElevenLabs speech-to-text endpoint.
	defaultEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

	// defaultModel is the transcription model used unless overridden.
	defaultModel = "scribe_v1"
)

// Option configures the Recognizer.
type Option func(*Recognizer)

// WithModel sets the transcription model ID (e.g., "scribe_v1").
func WithModel(model string) Option {
	return func(r *Recognizer) {
		r.model = model
	}
}

// WithEndpoint overrides the API endpoint. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(r *Recognizer) {
		r.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recognizer) {
		r.httpClient = c
	}
}

// WithTagAudioEvents enables tagging of non-speech events (laughter,
// applause) in the transcript. Off by default: event tags would be read
// aloud by the downstream synthesizer.
func WithTagAudioEvents(enabled bool) Option {
	return func(r *Recognizer) {
		r.tagAudioEvents = enabled
	}
}

// Recognizer implements stt.Recognizer using the ElevenLabs API.
type Recognizer struct {
	apiKey         string
	model          string
	endpoint       string
	tagAudioEvents bool
	httpClient     *http.Client
}

// New creates a new ElevenLabs Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	r := &Recognizer{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Recognize implements stt.Recognizer. The PCM buffer is wrapped in a WAV
// container and uploaded as a multipart form.
func (r *Recognizer) Recognize(ctx context.Context, pcm []byte, langCode string) (string, error) {
	if len(pcm) == 0 {
		return "", errors.New("elevenlabs: empty audio")
	}
	wav := audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("elevenlabs: write wav data: %w", err)
	}

	if err := mw.WriteField("model_id", r.model); err != nil {
		return "", fmt.Errorf("elevenlabs: write model_id field: %w", err)
	}
	if langCode != "" {
		if err := mw.WriteField("language_code", langCode); err != nil {
			return "", fmt.Errorf("elevenlabs: write language_code field: %w", err)
		}
	}
	if err := mw.WriteField("tag_audio_events", strconv.FormatBool(r.tagAudioEvents)); err != nil {
		return "", fmt.Errorf("elevenlabs: write tag_audio_events field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("xi-api-key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("elevenlabs: decode response: %w", err)
	}
	return result.Text, nil
}

var _ stt.Recognizer = (*Recognizer)(nil)
