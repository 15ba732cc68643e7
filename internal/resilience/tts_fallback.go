package resilience

import (
	"context"

	"github.com/MrWong99/parley/pkg/provider/tts"
)

// SynthesizerFallback implements [tts.Synthesizer] with automatic failover
// across multiple TTS backends. Each backend has its own circuit breaker.
//
// Only the initial synthesis request is covered by failover. Once a stream
// is established, mid-stream errors surface through [tts.Stream.Err] and
// are the caller's responsibility.
type SynthesizerFallback struct {
	group *FallbackGroup[tts.Synthesizer]
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*SynthesizerFallback)(nil)

// NewSynthesizerFallback creates a [SynthesizerFallback] with primary as the
// preferred backend. The stock deployment runs a single synthesis vendor and
// wires the synthesizer directly; this wrapper mirrors
// [NewRecognizerFallback] and [NewTranslatorFallback] for setups that add a
// second backend via [SynthesizerFallback.AddFallback].
func NewSynthesizerFallback(primary tts.Synthesizer, primaryName string, cfg FallbackConfig) *SynthesizerFallback {
	return &SynthesizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesizer as a fallback.
func (f *SynthesizerFallback) AddFallback(name string, s tts.Synthesizer) {
	f.group.AddFallback(name, s)
}

// Synthesize starts synthesis against the first healthy backend and returns
// its stream.
func (f *SynthesizerFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (*tts.Stream, error) {
	return ExecuteWithResult(f.group, func(s tts.Synthesizer) (*tts.Stream, error) {
		return s.Synthesize(ctx, text, voice)
	})
}
