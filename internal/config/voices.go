package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrWong99/parley/internal/lang"
	"github.com/MrWong99/parley/pkg/provider/tts"
	"gopkg.in/yaml.v3"
)

// VoiceCatalog maps ISO-639-1 language codes to synthesis voice IDs so
// each engine speaks its target language with a fitting voice.
type VoiceCatalog struct {
	// DefaultVoice is used for target languages without a Voices entry.
	DefaultVoice string `yaml:"default_voice"`

	// DefaultModel overrides the synthesis model for every catalog voice.
	DefaultModel string `yaml:"default_model"`

	// Voices maps an ISO-639-1 code ("ur") to a voice ID.
	Voices map[string]string `yaml:"voices"`
}

// LoadVoices reads the YAML voice catalog at path. Unknown keys are
// rejected. Entries for language codes outside the supported catalog are
// kept but logged, since they can never match a target language.
func LoadVoices(path string) (*VoiceCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open voices %q: %w", path, err)
	}
	defer f.Close()

	cat, err := parseVoices(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse voices %q: %w", path, err)
	}
	return cat, nil
}

func parseVoices(r io.Reader) (*VoiceCatalog, error) {
	cat := &VoiceCatalog{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cat); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for code := range cat.Voices {
		if _, ok := lang.ByCode(code); !ok {
			slog.Warn("voice catalog entry for unsupported language code", "code", code)
		}
	}
	return cat, nil
}

// Voice returns the synthesis voice for a target language code, falling
// back to the catalog default. A nil catalog returns the zero [tts.Voice].
func (c *VoiceCatalog) Voice(code string) tts.Voice {
	if c == nil {
		return tts.Voice{}
	}
	v := tts.Voice{ID: c.Voices[code], Model: c.DefaultModel}
	if v.ID == "" {
		v.ID = c.DefaultVoice
	}
	return v
}
