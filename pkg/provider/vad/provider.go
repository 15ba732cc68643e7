// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine wraps a frame-level speech classifier (an energy detector, or
// a model such as WebRTC VAD or Silero) and surfaces it as a stateful
// per-stream detector. Each detector keeps its own smoothing history so that
// multiple concurrent audio streams can be classified independently.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// classification, making it suitable for the low-latency capture loop that
// gates utterance segmentation.
//
// Implementations must be safe for concurrent use across different
// detectors. A single Detector must not be shared between goroutines unless
// the implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a detector.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. Supported values: 8000, 16000,
	// 32000, 48000.
	SampleRate int

	// FrameSize is the number of samples per frame. Must correspond to 10,
	// 20, or 30 ms at SampleRate; ProcessFrame rejects frames of any other
	// size.
	FrameSize int

	// Mode sets how aggressively non-speech is filtered out, from 0 (most
	// permissive) to 3 (most aggressive). Higher modes reduce false
	// triggers on background noise at the cost of clipping quiet speech
	// onsets. Typical for close-mic dictation: 3.
	Mode int
}

// Detector classifies successive audio frames of a single stream as speech
// or non-speech. It is an interface so that test code can supply scripted
// implementations without a live engine. Each detector maintains its own
// state; Reset clears this state without discarding the detector.
type Detector interface {
	// ProcessFrame reports whether the frame contains speech. The frame
	// must be raw little-endian 16-bit PCM of exactly the configured frame
	// size. Returns an error if the frame size is wrong or the engine
	// encounters an internal failure.
	//
	// This method is called once per frame from the capture loop; it must
	// not block.
	ProcessFrame(frame []byte) (bool, error)

	// Reset clears all accumulated state (noise floor estimates, smoothing
	// history) without discarding the detector. Use this when the audio
	// stream is interrupted or restarted so stale state from the previous
	// segment does not affect subsequent frames.
	Reset()
}

// Engine is the factory for detectors. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewDetector simultaneously to create independent detectors.
type Engine interface {
	// NewDetector creates a detector with the given configuration. The
	// detector is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid (unsupported sample
	// rate, frame size, or mode out of range).
	NewDetector(cfg Config) (Detector, error)
}
