// Package groq implements stt.Recognizer backed by Groq's OpenAI-compatible
// audio transcription API.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

const (
	// defaultEndpoint is the Groq transcription endpoint.
	defaultEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"

	// defaultModel is the Whisper variant used unless overridden.
	defaultModel = "whisper-large-v3-turbo"
)

// Option configures the Recognizer.
type Option func(*Recognizer)

// WithModel sets the transcription model (e.g., "whisper-large-v3-turbo").
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

// WithPrompt sets an optional context prompt that biases the model toward
// expected vocabulary or spelling.
func WithPrompt(prompt string) Option {
	return func(r *Recognizer) {
		r.prompt = prompt
	}
}

// Recognizer implements stt.Recognizer using Groq's hosted Whisper models.
type Recognizer struct {
	apiKey     string
	model      string
	endpoint   string
	prompt     string
	httpClient *http.Client
}

// New creates a new Groq Recognizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("groq: apiKey must not be empty")
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
		return "", errors.New("groq: empty audio")
	}
	wav := audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("groq: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("groq: write wav data: %w", err)
	}

	if err := mw.WriteField("model", r.model); err != nil {
		return "", fmt.Errorf("groq: write model field: %w", err)
	}
	if langCode != "" {
		if err := mw.WriteField("language", langCode); err != nil {
			return "", fmt.Errorf("groq: write language field: %w", err)
		}
	}
	if r.prompt != "" {
		if err := mw.WriteField("prompt", r.prompt); err != nil {
			return "", fmt.Errorf("groq: write prompt field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("groq: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("groq: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("groq: decode response: %w", err)
	}
	return result.Text, nil
}

var _ stt.Recognizer = (*Recognizer)(nil)
