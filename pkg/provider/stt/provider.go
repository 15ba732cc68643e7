// Package stt defines the Recognizer interface for speech-to-text backends.
//
// Recognition is batch-oriented: the segmenter assembles a complete
// utterance before recognition starts, so each call carries one closed PCM
// buffer and returns one final transcript. There are no partial results to
// reconcile, which keeps providers stateless and trivially shareable
// between pipelines.
//
// Implementations must be safe for concurrent use; a single Recognizer is
// typically shared by several translation pipelines.
package stt

import "context"

// Recognizer transcribes recorded speech.
type Recognizer interface {
	// Recognize transcribes a complete utterance. pcm is raw little-endian
	// 16-bit mono PCM at 16 kHz. langCode is the ISO 639-1 code of the
	// expected language ("en", "ur"); an empty code lets the backend
	// auto-detect.
	//
	// The returned transcript may be empty when the provider heard no
	// usable speech. Recognize blocks until the backend responds or ctx is
	// done.
	Recognize(ctx context.Context, pcm []byte, langCode string) (string, error)
}
