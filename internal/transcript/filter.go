// Package transcript cleans and formats speech-to-text output on its way
// through the translation pipeline.
//
// Batch STT models hallucinate on breath noise and room tone: they emit
// stock phrases ("Thank you", "subtitles"), lone punctuation, or bracketed
// event tags like "(music)". The [Filter] drops those before they cost a
// translation round trip or, worse, get spoken aloud on the far side.
//
// The package also owns the status line format shared by the console, the
// captions feed, and the conversation history recorder.
package transcript

import (
	"strings"
	"unicode/utf8"
)

// minRunes is the shortest trimmed transcript considered real speech.
const minRunes = 2

// DefaultStopPhrases are dropped when a trimmed, lowercased transcript
// matches one exactly. The set collects the stock phrases batch STT models
// produce on near-silent audio.
var DefaultStopPhrases = []string{
	".", "...", "?", "!",
	"you", "thank you",
	"subtitles", "watching", "video",
	"subscribe", "notification", "copyright",
}

// FilterOption is a functional option for configuring a [Filter].
type FilterOption func(*Filter)

// WithStopPhrases replaces the default stop-phrase set.
func WithStopPhrases(phrases []string) FilterOption {
	return func(f *Filter) {
		f.stop = make(map[string]struct{}, len(phrases))
		for _, p := range phrases {
			f.stop[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
		}
	}
}

// WithExtraStopPhrases adds phrases on top of the current set.
func WithExtraStopPhrases(phrases ...string) FilterOption {
	return func(f *Filter) {
		for _, p := range phrases {
			f.stop[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
		}
	}
}

// Filter decides which transcripts are worth translating.
// It is read-only after construction and safe for concurrent use.
type Filter struct {
	stop map[string]struct{}
}

// NewFilter constructs a Filter with [DefaultStopPhrases], then applies opts.
func NewFilter(opts ...FilterOption) *Filter {
	f := &Filter{}
	WithStopPhrases(DefaultStopPhrases)(f)
	for _, o := range opts {
		o(f)
	}
	return f
}

// Drop reports whether text should be discarded instead of translated.
// The reason is a short token for debug logging ("empty", "stop phrase").
func (f *Filter) Drop(text string) (reason string, drop bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "empty", true
	}
	if strings.HasPrefix(trimmed, "(") {
		return "audio event", true
	}
	if _, ok := f.stop[strings.ToLower(trimmed)]; ok {
		return "stop phrase", true
	}
	if utf8.RuneCountInString(trimmed) < minRunes {
		return "too short", true
	}
	return "", false
}
