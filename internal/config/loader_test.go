package config_test

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/parley/internal/config"
)

// writeConfig writes content to a config.json in a fresh temp dir and
// returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if cfg.Recognizer != config.RecognizerElevenLabs {
		t.Errorf("default recognizer = %q, want elevenlabs", cfg.Recognizer)
	}
	if cfg.VADMode != 3 {
		t.Errorf("default vad_mode = %d, want 3", cfg.VADMode)
	}
	if cfg.EndSilenceMs != 990 {
		t.Errorf("default end_silence_ms = %d, want 990", cfg.EndSilenceMs)
	}
	if cfg.TTSVoice != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("default tts_voice = %q, want the stock voice", cfg.TTSVoice)
	}
	source, target, err := cfg.Languages()
	if err != nil {
		t.Fatalf("Languages() on defaults: %v", err)
	}
	if source.Code != "en" || target.Code != "ur" {
		t.Errorf("default languages = %s -> %s, want en -> ur", source.Code, target.Code)
	}
}

func TestLoadFromReader_EmptyObjectKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VADMode != 3 {
		t.Errorf("vad_mode = %d, want default 3", cfg.VADMode)
	}
	if cfg.SourceLang != "English" || cfg.TargetLang != "Urdu" {
		t.Errorf("languages = %q -> %q, want English -> Urdu", cfg.SourceLang, cfg.TargetLang)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	json := `{
  "api_key_groq": "gsk_test",
  "api_key_elevenlabs": "el_test",
  "sender_input": "2: Microphone (USB Audio)",
  "sender_output": "5: CABLE Input (VB-Audio)",
  "receiver_input": "6: CABLE Output (VB-Audio)",
  "receiver_output": "0: Speakers",
  "source_lang": "English",
  "target_lang": "Japanese",
  "recognizer": "groq",
  "recognizer_model": "whisper-large-v3",
  "translator_model": "llama-3.3-70b-versatile",
  "tts_voice": "pNInz6obpgDQGcFmaJgB",
  "tts_model": "eleven_flash_v2_5",
  "vad_mode": 1,
  "end_silence_ms": 600,
  "filter_words": ["thanks for watching", "like and subscribe"],
  "history_dsn": "postgres://localhost:5432/parley",
  "monitor_addr": "127.0.0.1:8811",
  "voices_file": "voices.yaml",
  "mcp": true,
  "log_level": "debug"
}`
	cfg, err := config.LoadFromReader(strings.NewReader(json))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognizer != config.RecognizerGroq {
		t.Errorf("recognizer = %q, want groq", cfg.Recognizer)
	}
	if cfg.VADMode != 1 {
		t.Errorf("vad_mode = %d, want 1", cfg.VADMode)
	}
	if got := cfg.EndSilenceFrames(); got != 20 {
		t.Errorf("EndSilenceFrames() = %d, want 20 for 600 ms", got)
	}
	if len(cfg.FilterWords) != 2 {
		t.Errorf("filter_words has %d entries, want 2", len(cfg.FilterWords))
	}
	if !cfg.MCP {
		t.Error("mcp should be true")
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	_, target, err := cfg.Languages()
	if err != nil {
		t.Fatalf("Languages(): %v", err)
	}
	if target.Code != "ja" {
		t.Errorf("target code = %q, want ja", target.Code)
	}
}

func TestLoadFromReader_UnknownKeyRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"api_key_gorq": "oops"}`))
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key_gorq") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestLoadFromReader_ExplicitZeroVADMode(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`{"vad_mode": 0}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VADMode != 0 {
		t.Errorf("vad_mode = %d, want explicit 0 kept", cfg.VADMode)
	}
}

func TestLoadFromReader_VADModeOutOfRange(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"vad_mode": 4}`))
	if err == nil {
		t.Fatal("expected error for vad_mode 4, got nil")
	}
	if !strings.Contains(err.Error(), "vad_mode") {
		t.Errorf("error should mention vad_mode, got: %v", err)
	}
}

func TestLoadFromReader_UnknownLanguage(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"target_lang": "Klingon"}`))
	if err == nil {
		t.Fatal("expected error for unknown language, got nil")
	}
	if !strings.Contains(err.Error(), "target_lang") {
		t.Errorf("error should mention target_lang, got: %v", err)
	}
	if !strings.Contains(err.Error(), "closest match") {
		t.Errorf("error should suggest the closest match, got: %v", err)
	}
}

func TestLoadFromReader_ShortEndSilence(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"end_silence_ms": 10}`))
	if err == nil {
		t.Fatal("expected error for sub-frame end_silence_ms, got nil")
	}
	if !strings.Contains(err.Error(), "end_silence_ms") {
		t.Errorf("error should mention end_silence_ms, got: %v", err)
	}
}

func TestLoadFromReader_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"log_level": "verbose"}`))
	if err == nil {
		t.Fatal("expected error for unknown log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestLoadFromReader_InvalidRecognizer(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"recognizer": "whisper"}`))
	if err == nil {
		t.Fatal("expected error for unknown recognizer, got nil")
	}
	if !strings.Contains(err.Error(), "elevenlabs, groq") {
		t.Errorf("error should list valid recognizers, got: %v", err)
	}
}

func TestLoadFromReader_BadMonitorAddr(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"monitor_addr": "8811"}`))
	if err == nil {
		t.Fatal("expected error for port-only monitor_addr, got nil")
	}
	if !strings.Contains(err.Error(), "monitor_addr") {
		t.Errorf("error should mention monitor_addr, got: %v", err)
	}
}

func TestLoadFromReader_MultipleErrors(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`{"recognizer": "deepgram", "vad_mode": -1}`))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "recognizer") {
		t.Errorf("error should mention recognizer, got: %v", err)
	}
	if !strings.Contains(errStr, "vad_mode") {
		t.Errorf("error should mention vad_mode, got: %v", err)
	}
}

func TestLoadFromReader_EmptyFilterWordsKept(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`{"filter_words": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An explicit empty list replaces the default stop list; it must stay
	// distinguishable from an absent key.
	if cfg.FilterWords == nil {
		t.Error("filter_words should be non-nil after an explicit empty list")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `{"api_key_groq": "gsk_from_file", "target_lang": "Spanish"}`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKeyGroq != "gsk_from_file" {
		t.Errorf("api_key_groq = %q, want the file value", cfg.APIKeyGroq)
	}
	if cfg.TargetLang != "Spanish" {
		t.Errorf("target_lang = %q, want Spanish", cfg.TargetLang)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap fs.ErrNotExist, got: %v", err)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_from_env")
	t.Setenv("ELEVENLABS_API_KEY", "el_from_env")
	path := writeConfig(t, `{"api_key_elevenlabs": "el_from_file"}`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKeyGroq != "gsk_from_env" {
		t.Errorf("api_key_groq = %q, want the environment fallback", cfg.APIKeyGroq)
	}
	if cfg.APIKeyElevenLabs != "el_from_file" {
		t.Errorf("api_key_elevenlabs = %q, want the file value to win", cfg.APIKeyElevenLabs)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	// t.Setenv registers restoration of the original value; the variable
	// itself must be absent for godotenv to take effect.
	t.Setenv("GROQ_API_KEY", "placeholder")
	os.Unsetenv("GROQ_API_KEY")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GROQ_API_KEY=gsk_from_dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)

	cfg, err := config.Load("config.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKeyGroq != "gsk_from_dotenv" {
		t.Errorf("api_key_groq = %q, want the .env value", cfg.APIKeyGroq)
	}
}

func TestLanguages_UnknownName(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.SourceLang = "Enlgish"
	_, _, err := cfg.Languages()
	if err == nil {
		t.Fatal("expected error for unknown language, got nil")
	}
	if !strings.Contains(err.Error(), "closest match: English") {
		t.Errorf("error should suggest English, got: %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	if !config.LogDebug.IsValid() {
		t.Error("debug should be a valid log level")
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("verbose should not be a valid log level")
	}
	if got := config.LogWarn.Level(); got != slog.LevelWarn {
		t.Errorf("LogWarn.Level() = %v, want %v", got, slog.LevelWarn)
	}
	if got := config.LogLevel("verbose").Level(); got != slog.LevelInfo {
		t.Errorf("unknown level maps to %v, want info", got)
	}
}
