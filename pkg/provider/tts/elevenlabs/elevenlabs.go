// Package elevenlabs implements [tts.Synthesizer] backed by the ElevenLabs
// HTTP streaming endpoint (POST /v1/text-to-speech/{voice_id}/stream).
//
// Audio is requested as pcm_16000, so chunks go straight to the playback
// device without transcoding. The response body is a chunked transfer that
// begins before the full clip is rendered; chunks are forwarded to the
// stream as they arrive.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultModel   = "eleven_turbo_v2_5"
	outputFormat   = "pcm_16000"

	// streamBuffer is the buffer depth of the stream's chunk channel.
	streamBuffer = 256

	// chunkSize is the read granularity off the HTTP response body.
	chunkSize = 4096
)

// Option is a functional option for configuring the Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the default model ID (e.g., "eleven_flash_v2_5").
// A non-empty Voice.Model still wins per call.
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.model = model
	}
}

// WithBaseURL overrides the API host, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(s *Synthesizer) {
		s.baseURL = baseURL
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) {
		s.httpClient = c
	}
}

// Synthesizer implements tts.Synthesizer backed by the ElevenLabs API.
type Synthesizer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a Synthesizer. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ---- request/response types ----

// synthesisRequest is the JSON body for the stream endpoint.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ---- Synthesize ----

// Synthesize implements [tts.Synthesizer]. The HTTP request is issued
// synchronously, so authentication and quota failures surface as a start
// error; a goroutine then forwards the response body to the stream.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice tts.Voice) (*tts.Stream, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	model := voice.Model
	if model == "" {
		model = s.model
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		s.baseURL, url.PathEscape(voice.ID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: POST stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs: server returned HTTP %d", resp.StatusCode)
	}

	stream := tts.NewStream(streamBuffer)
	go pump(ctx, resp.Body, stream)
	return stream, nil
}

// pump forwards the response body to the stream in chunkSize reads.
func pump(ctx context.Context, body io.ReadCloser, stream *tts.Stream) {
	defer body.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !stream.Send(ctx, chunk) {
				stream.Close(ctx.Err())
				return
			}
		}
		if err == io.EOF {
			stream.Close(nil)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				stream.Close(ctx.Err())
				return
			}
			stream.Close(fmt.Errorf("elevenlabs: read audio stream: %w", err))
			return
		}
	}
}

// ---- ListVoices ----

// VoiceInfo is one catalogue entry from the voices endpoint.
type VoiceInfo struct {
	ID       string
	Name     string
	Category string
	Labels   map[string]string
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available for the configured API key.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: server returned HTTP %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices response: %w", err)
	}

	voices := make([]VoiceInfo, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, VoiceInfo{
			ID:       v.VoiceID,
			Name:     v.Name,
			Category: v.Category,
			Labels:   v.Labels,
		})
	}
	return voices, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
