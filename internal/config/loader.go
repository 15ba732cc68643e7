package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/MrWong99/parley/internal/lang"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/joho/godotenv"
)

// Load reads the JSON configuration file at path and returns a validated
// [Config]. A .env file in the working directory is loaded first, and API
// keys the file leaves empty are filled from the environment via [ApplyEnv].
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// LoadFromReader decodes a JSON config from r over [Default] and validates
// the result. Unknown keys are rejected. Useful in tests where configs are
// constructed from string literals; unlike [Load] it never touches the
// environment.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills API keys the config file left empty from the process
// environment: GROQ_API_KEY and ELEVENLABS_API_KEY.
func ApplyEnv(cfg *Config) {
	if cfg.APIKeyGroq == "" {
		cfg.APIKeyGroq = os.Getenv("GROQ_API_KEY")
	}
	if cfg.APIKeyElevenLabs == "" {
		cfg.APIKeyElevenLabs = os.Getenv("ELEVENLABS_API_KEY")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	var source, target lang.Tag
	if cfg.SourceLang == "" {
		errs = append(errs, errors.New("source_lang must name a language"))
	} else if t, err := lang.Parse(cfg.SourceLang); err != nil {
		errs = append(errs, fmt.Errorf("source_lang: %w", err))
	} else {
		source = t
	}
	if cfg.TargetLang == "" {
		errs = append(errs, errors.New("target_lang must name a language"))
	} else if t, err := lang.Parse(cfg.TargetLang); err != nil {
		errs = append(errs, fmt.Errorf("target_lang: %w", err))
	} else {
		target = t
	}
	if !source.IsZero() && source == target {
		slog.Warn("source_lang and target_lang resolve to the same language; translation becomes a pass-through",
			"lang", source.Name,
		)
	}

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if !cfg.Recognizer.IsValid() {
		errs = append(errs, fmt.Errorf("recognizer %q is invalid; valid values: elevenlabs, groq", cfg.Recognizer))
	}

	if cfg.VADMode < 0 || cfg.VADMode > 3 {
		errs = append(errs, fmt.Errorf("vad_mode %d is out of range [0, 3]", cfg.VADMode))
	}

	frameMs := int(audio.FrameDuration / time.Millisecond)
	if cfg.EndSilenceMs < frameMs {
		errs = append(errs, fmt.Errorf("end_silence_ms %d is too short; one capture frame is %d ms", cfg.EndSilenceMs, frameMs))
	}

	if cfg.MonitorAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.MonitorAddr); err != nil {
			errs = append(errs, fmt.Errorf("monitor_addr %q is not a host:port address: %v", cfg.MonitorAddr, err))
		}
	}

	return errors.Join(errs...)
}
