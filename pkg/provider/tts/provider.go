// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// Synthesis is streaming. A backend starts delivering PCM before the full
// clip is rendered, so playback can begin on the first chunk; in a live
// conversation the time to first audio byte matters far more than total
// render time. Results arrive on a [Stream], which carries the audio chunks
// and the terminal error state of the transfer.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice selects the synthesis voice.
type Voice struct {
	// ID is the provider's voice identifier.
	ID string

	// Model is the provider's synthesis model (e.g., "eleven_flash_v2_5").
	// Empty picks the implementation default.
	Model string
}

// Synthesizer turns text into a stream of raw PCM audio.
type Synthesizer interface {
	// Synthesize renders text with the given voice. Audio arrives on the
	// returned stream as raw little-endian signed 16-bit mono PCM at 16 kHz.
	//
	// A non-nil error means the stream could not be started (bad request,
	// authentication failure, unreachable host). Failures after the first
	// byte are reported through [Stream.Err] once the chunk channel closes.
	Synthesize(ctx context.Context, text string, voice Voice) (*Stream, error)
}
