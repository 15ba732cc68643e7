// Package config provides the configuration schema and loaders for the
// parley translator: the flat config.json file, API key fallbacks from the
// process environment or a .env file, and the optional YAML voice catalog.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/parley/internal/lang"
	"github.com/MrWong99/parley/pkg/audio"
)

// LogLevel controls log verbosity for the translator.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to its [slog.Level]. Unrecognised values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Recognizer selects the speech-to-text backend.
type Recognizer string

const (
	// RecognizerElevenLabs transcribes through the ElevenLabs scribe API.
	RecognizerElevenLabs Recognizer = "elevenlabs"

	// RecognizerGroq transcribes through Groq-hosted Whisper.
	RecognizerGroq Recognizer = "groq"
)

// IsValid reports whether r is a recognised backend name.
func (r Recognizer) IsValid() bool {
	return r == RecognizerElevenLabs || r == RecognizerGroq
}

const (
	// defaultVoiceID is the stock ElevenLabs voice used when neither the
	// voice catalog nor tts_voice selects one.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

	// defaultEndSilenceMs mirrors the segmenter's built-in close threshold
	// of 33 capture frames. Keep the two in sync.
	defaultEndSilenceMs = 990
)

// Config is the translator's full configuration. Every key is optional;
// [Default] supplies the baseline and the loaders merge the file over it.
type Config struct {
	// APIKeyGroq authenticates transcription and translation calls against
	// the Groq API. Falls back to the GROQ_API_KEY environment variable.
	APIKeyGroq string `json:"api_key_groq"`

	// APIKeyElevenLabs authenticates transcription and synthesis calls
	// against the ElevenLabs API. Falls back to ELEVENLABS_API_KEY.
	APIKeyElevenLabs string `json:"api_key_elevenlabs"`

	// SenderInput names the capture device for the local speaker, in the
	// "12: Microphone (Realtek)" form printed by -list-devices. An empty
	// or unresolvable label selects the system default device.
	SenderInput string `json:"sender_input"`

	// SenderOutput names the playback device for translated local speech,
	// typically a virtual cable feeding the conferencing app.
	SenderOutput string `json:"sender_output"`

	// ReceiverInput names the capture device carrying the remote party's
	// voice, typically the far side of the virtual cable.
	ReceiverInput string `json:"receiver_input"`

	// ReceiverOutput names the playback device for translated remote
	// speech, typically the local headphones.
	ReceiverOutput string `json:"receiver_output"`

	// SourceLang is the local speaker's language, by display name or
	// ISO-639-1 code ("English" or "en").
	SourceLang string `json:"source_lang"`

	// TargetLang is the remote party's language.
	TargetLang string `json:"target_lang"`

	// Recognizer selects the speech-to-text backend.
	Recognizer Recognizer `json:"recognizer"`

	// RecognizerModel overrides the backend's default transcription model.
	RecognizerModel string `json:"recognizer_model"`

	// TranslatorModel overrides the default translation model.
	TranslatorModel string `json:"translator_model"`

	// TTSVoice is the synthesis voice ID used for target languages without
	// a voice catalog entry.
	TTSVoice string `json:"tts_voice"`

	// TTSModel overrides the synthesis model for all voices.
	TTSModel string `json:"tts_model"`

	// VADMode sets voice-activity aggressiveness, from 0 (most permissive)
	// to 3 (most aggressive).
	VADMode int `json:"vad_mode"`

	// EndSilenceMs is the trailing silence, in milliseconds, that closes
	// an utterance.
	EndSilenceMs int `json:"end_silence_ms"`

	// FilterWords replaces the default transcript stop list. Utterances
	// whose trimmed, lowercased text matches an entry are dropped.
	FilterWords []string `json:"filter_words"`

	// HistoryDSN is the PostgreSQL connection string for transcript
	// history. Empty disables persistence.
	HistoryDSN string `json:"history_dsn"`

	// MonitorAddr is the listen address for the monitor HTTP server, e.g.
	// "127.0.0.1:8811". Empty disables the server.
	MonitorAddr string `json:"monitor_addr"`

	// VoicesFile is the path to the YAML voice catalog. Empty means no
	// catalog; TTSVoice then applies to every target language.
	VoicesFile string `json:"voices_file"`

	// MCP serves the Model Context Protocol tools on stdio when true.
	MCP bool `json:"mcp"`

	// LogLevel sets log verbosity: debug, info, warn, or error.
	LogLevel LogLevel `json:"log_level"`
}

// Default returns the baseline configuration: ElevenLabs recognition,
// aggressive voice-activity detection, English to Urdu, system default
// devices.
func Default() *Config {
	return &Config{
		SourceLang:   "English",
		TargetLang:   "Urdu",
		Recognizer:   RecognizerElevenLabs,
		TTSVoice:     defaultVoiceID,
		VADMode:      3,
		EndSilenceMs: defaultEndSilenceMs,
		LogLevel:     LogInfo,
	}
}

// Languages resolves the configured source and target language names
// against the supported catalog.
func (c *Config) Languages() (source, target lang.Tag, err error) {
	source, err = lang.Parse(c.SourceLang)
	if err != nil {
		return lang.Tag{}, lang.Tag{}, fmt.Errorf("source_lang: %w", err)
	}
	target, err = lang.Parse(c.TargetLang)
	if err != nil {
		return lang.Tag{}, lang.Tag{}, fmt.Errorf("target_lang: %w", err)
	}
	return source, target, nil
}

// EndSilenceFrames converts the configured end-of-utterance silence into
// whole capture frames.
func (c *Config) EndSilenceFrames() int {
	return c.EndSilenceMs / int(audio.FrameDuration/time.Millisecond)
}
